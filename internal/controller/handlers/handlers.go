// Package handlers contains HTTP handlers for the acquisition API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/pkg/api"
)

// Pipeline is the orchestrator surface the gateway drives.
type Pipeline interface {
	Launch(email, password, source string) uuid.UUID
	SubmitOtp(id uuid.UUID, code string) error
	Confirm(id uuid.UUID) error
	RequestCancel(id uuid.UUID) error
	PublishChallenge(id uuid.UUID, kind acquisition.ChallengeKind, prompt, detectedURL string) error
	ChallengeInput(id uuid.UUID) (otp string, confirmed bool, visible bool, otpError string, err error)
	ClearChallengeInput(id uuid.UUID) error
}

// JobStore reads job snapshots for pollers.
type JobStore interface {
	Get(id uuid.UUID) (acquisition.Snapshot, error)
}

// ArtifactStore reads the artifact catalog.
type ArtifactStore interface {
	List(ctx context.Context) ([]artifact.Meta, error)
	ListByJob(ctx context.Context, jobID string) ([]artifact.Meta, error)
	Get(ctx context.Context, id string) (artifact.Meta, []byte, error)
}

// DeviceBridge browses an attached device.
type DeviceBridge interface {
	Status(ctx context.Context) (api.DeviceStatusResponse, error)
	ListFolders(ctx context.Context, dir string) ([]api.FolderNode, error)
	Scan(ctx context.Context, dir string) (api.FolderNode, error)
	QuickScan(ctx context.Context) (api.FolderNode, error)
	Preview(ctx context.Context, file string, includeContent bool) (api.FilePreviewResponse, error)
	Pull(ctx context.Context, file, dest string) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	pipeline  Pipeline
	jobs      JobStore
	artifacts ArtifactStore
	device    DeviceBridge
}

// New creates a new Handlers instance.
func New(pipeline Pipeline, jobs JobStore, artifacts ArtifactStore, device DeviceBridge) *Handlers {
	return &Handlers{
		pipeline:  pipeline,
		jobs:      jobs,
		artifacts: artifacts,
		device:    device,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// jobID parses the {id} path value, writing a 400 on failure.
func (h *Handlers) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
