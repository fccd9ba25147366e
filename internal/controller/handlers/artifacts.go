package handlers

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/pkg/api"
)

// ListArtifacts handles GET /artifacts.
// Filter to one job with ?job_id=.
func (h *Handlers) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	var (
		metas []artifact.Meta
		err   error
	)
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		metas, err = h.artifacts.ListByJob(r.Context(), jobID)
	} else {
		metas, err = h.artifacts.List(r.Context())
	}
	if err != nil {
		h.httpError(w, "Failed to list artifacts", http.StatusInternalServerError)
		return
	}

	resp := api.ListArtifactsResponse{Artifacts: make([]api.ArtifactMeta, 0, len(metas))}
	for _, m := range metas {
		resp.Artifacts = append(resp.Artifacts, artifactMetaToAPI(m))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetArtifact handles GET /artifacts/{id}. Text payloads come back inline.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	meta, data, ok := h.loadArtifact(w, r)
	if !ok {
		return
	}

	resp := api.ArtifactContentResponse{ArtifactMeta: artifactMetaToAPI(meta)}
	if utf8.Valid(data) {
		resp.Content = string(data)
	}
	h.respondJson(w, http.StatusOK, resp)
}

// DownloadArtifact handles GET /artifacts/{id}/download. The payload is
// served as an attachment.
func (h *Handlers) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	meta, data, ok := h.loadArtifact(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.Name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handlers) loadArtifact(w http.ResponseWriter, r *http.Request) (artifact.Meta, []byte, bool) {
	meta, data, err := h.artifacts.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, artifact.ErrNotFound) {
		h.httpError(w, "Artifact not found", http.StatusNotFound)
		return artifact.Meta{}, nil, false
	}
	if err != nil {
		h.httpError(w, "Failed to load artifact", http.StatusInternalServerError)
		return artifact.Meta{}, nil, false
	}
	return meta, data, true
}

func artifactMetaToAPI(m artifact.Meta) api.ArtifactMeta {
	return api.ArtifactMeta{
		ID:        m.ID,
		JobID:     m.JobID,
		Name:      m.Name,
		Kind:      m.Kind,
		Size:      m.Size,
		SHA256:    m.SHA256,
		CreatedAt: m.CreatedAt,
	}
}
