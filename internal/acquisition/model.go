// Package acquisition contains the job record model and the in-memory store
// that is the single source of truth polled by clients.
package acquisition

import (
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an acquisition job.
type Status string

const (
	StatusStarted             Status = "started"
	StatusRunning             Status = "running"
	StatusWaitingForChallenge Status = "waiting_for_challenge"
	StatusOtpSubmitted        Status = "otp_submitted"
	StatusCancelled           Status = "cancelled"
	StatusError               Status = "error"
	StatusCompleted           Status = "completed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusError, StatusCompleted:
		return true
	}
	return false
}

// Step names one stage of the acquisition pipeline.
type Step string

const (
	StepNone     Step = ""
	StepAuth     Step = "auth"
	StepFetch    Step = "fetch"
	StepSync     Step = "sync"
	StepDownload Step = "download"
	StepReport   Step = "report"
	StepHash     Step = "hash"
	StepDone     Step = "completed"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorInvalidOtp        ErrorKind = "INVALID_OTP"
	ErrorInvalidEmail      ErrorKind = "INVALID_EMAIL"
	ErrorIncorrectPassword ErrorKind = "INCORRECT_PASSWORD"
	ErrorPushDenied        ErrorKind = "PUSH_DENIED"
	ErrorUnknownChallenge  ErrorKind = "UNKNOWN_CHALLENGE_PAGE"
	ErrorMaxRetries        ErrorKind = "MAX_OTP_RETRIES_EXCEEDED"
	ErrorGeneric           ErrorKind = "GENERIC_ERROR"
	ErrorCancelled         ErrorKind = "CANCELLED"
)

// Recoverable reports whether the pipeline may continue after this error.
// Only an invalid OTP is recoverable: the job stays alive pending a retry.
func (k ErrorKind) Recoverable() bool {
	return k == ErrorNone || k == ErrorInvalidOtp
}

// ChallengeKind is the kind of out-of-band authentication challenge.
type ChallengeKind string

const (
	ChallengePush ChallengeKind = "push"
	ChallengeOtp  ChallengeKind = "otp"
)

// LogEntry is one timestamped line of the job's client-visible log.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// Challenge is the sub-record describing a pending authentication challenge.
type Challenge struct {
	Kind        ChallengeKind
	Prompt      string
	DetectedURL string
	OtpError    string
	Visible     bool
	RetryCount  int
	MaxRetries  int
}

// Job is one acquisition run. All mutation happens through Store.Mutate so
// writers are serialized per job.
type Job struct {
	ID            uuid.UUID
	Status        Status
	Step          Step
	Progress      int
	Log           []LogEntry
	Challenge     *Challenge
	AuthCompleted bool
	ErrorKind     ErrorKind
	Error         string
	ArtifactID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Challenge input slot, written by the gateway and polled by the auth
	// step subprocess.
	Otp           string
	UserConfirmed bool

	// Live subprocess handles, used only for cancellation.
	Running []*exec.Cmd

	// Set once cancellation has been initiated, to keep it idempotent
	// across the gateway and mediator call sites.
	Cancelling bool
}

// Done reports whether the job finished successfully.
func (j *Job) Done() bool {
	return j.Status == StatusCompleted
}

// AppendLog appends a timestamped log entry unless it duplicates the
// immediately preceding one. A progress of -1 leaves progress untouched;
// otherwise progress only ever increases here.
func (j *Job) AppendLog(message string, progress int) {
	if n := len(j.Log); n > 0 && j.Log[n-1].Message == message {
		return
	}
	j.Log = append(j.Log, LogEntry{Timestamp: time.Now().UTC(), Message: message})
	if progress >= 0 {
		j.SetProgress(progress)
	}
	j.touch()
}

// SetProgress raises progress to p. Lowering is only allowed through
// ResetProgressForRetry.
func (j *Job) SetProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
		j.touch()
	}
}

// ResetProgressForRetry lowers progress after an invalid OTP, the one
// sanctioned decrease.
func (j *Job) ResetProgressForRetry(p int) {
	if p < 0 {
		p = 0
	}
	j.Progress = p
	j.touch()
}

// EnsureChallenge returns the job's challenge record, creating it with the
// given kind and retry budget if absent.
func (j *Job) EnsureChallenge(kind ChallengeKind, maxRetries int) *Challenge {
	if j.Challenge == nil {
		j.Challenge = &Challenge{Kind: kind, MaxRetries: maxRetries}
	}
	return j.Challenge
}

// AddRunning registers a live subprocess handle for cancellation.
func (j *Job) AddRunning(cmd *exec.Cmd) {
	j.Running = append(j.Running, cmd)
	j.touch()
}

// RemoveRunning drops a subprocess handle once its exit is confirmed.
func (j *Job) RemoveRunning(cmd *exec.Cmd) {
	for i, c := range j.Running {
		if c == cmd {
			j.Running = append(j.Running[:i], j.Running[i+1:]...)
			break
		}
	}
	j.touch()
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}

// Snapshot is a deep, read-only copy of a Job handed to pollers.
type Snapshot struct {
	ID            uuid.UUID
	Status        Status
	Step          Step
	Progress      int
	Log           []LogEntry
	Challenge     *Challenge
	AuthCompleted bool
	ErrorKind     ErrorKind
	Error         string
	ArtifactID    string
	Otp           string
	UserConfirmed bool
	RunningCount  int
	Cancelling    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Done reports whether the snapshotted job finished successfully.
func (s Snapshot) Done() bool {
	return s.Status == StatusCompleted
}

// Snapshot returns a copy of the job safe to read without holding its lock.
func (j *Job) Snapshot() Snapshot {
	snap := Snapshot{
		ID:            j.ID,
		Status:        j.Status,
		Step:          j.Step,
		Progress:      j.Progress,
		Log:           make([]LogEntry, len(j.Log)),
		AuthCompleted: j.AuthCompleted,
		ErrorKind:     j.ErrorKind,
		Error:         j.Error,
		ArtifactID:    j.ArtifactID,
		Otp:           j.Otp,
		UserConfirmed: j.UserConfirmed,
		RunningCount:  len(j.Running),
		Cancelling:    j.Cancelling,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
	copy(snap.Log, j.Log)
	if j.Challenge != nil {
		c := *j.Challenge
		snap.Challenge = &c
	}
	return snap
}
