package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/pkg/api"
)

// StartAcquisition handles POST /acquisitions.
// Credentials travel only to the step subprocesses; they are never stored.
func (h *Handlers) StartAcquisition(w http.ResponseWriter, r *http.Request) {
	var req api.StartAcquisitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		h.httpError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	id := h.pipeline.Launch(req.Email, req.Password, req.Source)
	h.respondJson(w, http.StatusAccepted, api.StartAcquisitionResponse{JobID: id.String()})
}

// GetAcquisition handles GET /acquisitions/{id}.
// It returns the full job snapshot for polling clients.
func (h *Handlers) GetAcquisition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	snap, err := h.jobs.Get(id)
	if err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, snapshotToAPI(snap))
}

// SubmitOtp handles POST /acquisitions/{id}/otp.
func (h *Handlers) SubmitOtp(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	var req api.SubmitOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		h.httpError(w, "Code is required", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.SubmitOtp(id, req.Code); err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "submitted"})
}

// ConfirmChallenge handles POST /acquisitions/{id}/confirm.
// It acknowledges a push challenge on the user's behalf.
func (h *Handlers) ConfirmChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.Confirm(id); err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// CancelAcquisition handles POST /acquisitions/{id}/cancel.
// It returns once cancellation is underway; pollers observe the terminal
// status when the subprocesses have exited. Cancelling an already finished
// job is accepted as a no-op.
func (h *Handlers) CancelAcquisition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	err := h.pipeline.RequestCancel(id)
	switch {
	case errors.Is(err, acquisition.ErrNotFound):
		h.httpError(w, "Job not found", http.StatusNotFound)
	case err != nil:
		h.httpError(w, "Failed to cancel job", http.StatusInternalServerError)
	default:
		h.respondJson(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	}
}

// GetResult handles GET /acquisitions/{id}/result.
// The report is only available once the job has completed.
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	snap, err := h.jobs.Get(id)
	if err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	if snap.Status != acquisition.StatusCompleted || snap.ArtifactID == "" {
		h.httpError(w, "Result not ready", http.StatusConflict)
		return
	}

	meta, data, err := h.artifacts.Get(r.Context(), snap.ArtifactID)
	if err != nil {
		h.httpError(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.ArtifactContentResponse{
		ArtifactMeta: artifactMetaToAPI(meta),
		Content:      string(data),
	})
}

func snapshotToAPI(snap acquisition.Snapshot) api.AcquisitionStatusResponse {
	resp := api.AcquisitionStatusResponse{
		JobID:         snap.ID.String(),
		Status:        string(snap.Status),
		Step:          string(snap.Step),
		Progress:      snap.Progress,
		Log:           make([]api.LogEntry, 0, len(snap.Log)),
		AuthCompleted: snap.AuthCompleted,
		ErrorKind:     string(snap.ErrorKind),
		Error:         snap.Error,
		ArtifactID:    snap.ArtifactID,
		Done:          snap.Done(),
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}
	for _, e := range snap.Log {
		resp.Log = append(resp.Log, api.LogEntry{Timestamp: e.Timestamp, Message: e.Message})
	}
	if c := snap.Challenge; c != nil && c.Visible {
		resp.Challenge = &api.Challenge{
			Kind:        string(c.Kind),
			Prompt:      c.Prompt,
			DetectedURL: c.DetectedURL,
			OtpError:    c.OtpError,
			Visible:     c.Visible,
			RetryCount:  c.RetryCount,
			MaxRetries:  c.MaxRetries,
		}
	}
	return resp
}
