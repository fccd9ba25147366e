// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// StartAcquisitionRequest is the request body for starting an acquisition.
type StartAcquisitionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Source   string `json:"source,omitempty"`
}

// StartAcquisitionResponse is the response body after starting an acquisition.
type StartAcquisitionResponse struct {
	JobID string `json:"job_id"`
}

// LogEntry is a single timestamped pipeline log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Challenge describes a pending out-of-band authentication challenge.
type Challenge struct {
	Kind        string `json:"kind"`
	Prompt      string `json:"prompt,omitempty"`
	DetectedURL string `json:"detected_url,omitempty"`
	OtpError    string `json:"otp_error,omitempty"`
	Visible     bool   `json:"visible"`
	RetryCount  int    `json:"retry_count"`
	MaxRetries  int    `json:"max_retries"`
}

// AcquisitionStatusResponse is the full job snapshot returned to pollers.
type AcquisitionStatusResponse struct {
	JobID         string     `json:"job_id"`
	Status        string     `json:"status"`
	Step          string     `json:"step"`
	Progress      int        `json:"progress"`
	Log           []LogEntry `json:"log"`
	Challenge     *Challenge `json:"challenge,omitempty"`
	AuthCompleted bool       `json:"auth_completed"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	Error         string     `json:"error,omitempty"`
	ArtifactID    string     `json:"artifact_id,omitempty"`
	Done          bool       `json:"done"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SubmitOtpRequest is the request body for submitting a one-time code.
type SubmitOtpRequest struct {
	Code string `json:"code"`
}

// ChallengeInputResponse is polled by the auth step subprocess to learn about
// client-supplied challenge responses.
type ChallengeInputResponse struct {
	Otp           string `json:"otp,omitempty"`
	UserConfirmed bool   `json:"user_confirmed"`
	Visible       bool   `json:"visible"`
	OtpError      string `json:"otp_error,omitempty"`
}

// ChallengeUpdateRequest is posted by the auth step subprocess to publish the
// detected challenge kind and prompt for the polling client.
type ChallengeUpdateRequest struct {
	Kind        string `json:"kind,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	DetectedURL string `json:"detected_url,omitempty"`
}

// ArtifactMeta describes a stored artifact without its payload.
type ArtifactMeta struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id,omitempty"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// ListArtifactsResponse is the response body for the artifact catalog.
type ListArtifactsResponse struct {
	Artifacts []ArtifactMeta `json:"artifacts"`
}

// ArtifactContentResponse carries artifact metadata plus a text preview.
type ArtifactContentResponse struct {
	ArtifactMeta
	Content string `json:"content"`
}

// DeviceStatusResponse reports whether a bridged device is attached.
type DeviceStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// FolderNode is one node of a scanned device directory tree.
type FolderNode struct {
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Path      string       `json:"path"`
	FileCount int          `json:"file_count,omitempty"`
	Children  []FolderNode `json:"children,omitempty"`
	Partial   bool         `json:"partial,omitempty"`
	Info      string       `json:"info,omitempty"`
}

// FilePreviewResponse describes a device file, optionally with inline content.
type FilePreviewResponse struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	IsText   bool   `json:"is_text"`
	Preview  string `json:"preview"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
