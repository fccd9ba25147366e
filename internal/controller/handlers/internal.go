package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/pkg/api"
)

// These endpoints are called by the step subprocesses, not by clients.
// They should be reachable only from localhost.

// InternalChallengeInput handles GET /internal/acquisitions/{id}/input.
// The auth subprocess polls it for a submitted code or push confirmation.
func (h *Handlers) InternalChallengeInput(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	otp, confirmed, visible, otpError, err := h.pipeline.ChallengeInput(id)
	if err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, api.ChallengeInputResponse{
		Otp:           otp,
		UserConfirmed: confirmed,
		Visible:       visible,
		OtpError:      otpError,
	})
}

// InternalClearInput handles POST /internal/acquisitions/{id}/input/clear.
// The auth subprocess clears consumed input so a stale code is never
// verified twice.
func (h *Handlers) InternalClearInput(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.ClearChallengeInput(id); err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// InternalChallengeUpdate handles POST /internal/acquisitions/{id}/challenge.
// The auth subprocess publishes challenge details for polling clients.
func (h *Handlers) InternalChallengeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	var req api.ChallengeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	kind := acquisition.ChallengeKind(req.Kind)
	if kind != acquisition.ChallengeOtp && kind != acquisition.ChallengePush {
		h.httpError(w, "Unknown challenge kind", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.PublishChallenge(id, kind, req.Prompt, req.DetectedURL); err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "updated"})
}
