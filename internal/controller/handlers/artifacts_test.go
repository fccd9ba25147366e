package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/pkg/api"
)

func TestListArtifacts(t *testing.T) {
	metas := []artifact.Meta{
		{ID: "a2", JobID: "j2", Name: "report.html", Kind: "report", Size: 10, CreatedAt: time.Now().UTC()},
		{ID: "a1", JobID: "j1", Name: "report.html", Kind: "report", Size: 20, CreatedAt: time.Now().UTC().Add(-time.Hour)},
	}
	h := newTestHandlers(nil, nil, &mockArtifacts{metas: metas}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /artifacts", h.ListArtifacts)

	req := httptest.NewRequest(http.MethodGet, "/artifacts", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp api.ListArtifactsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(resp.Artifacts))
	}
	if resp.Artifacts[0].ID != "a2" {
		t.Errorf("unexpected first artifact %s", resp.Artifacts[0].ID)
	}
}

func TestGetArtifact(t *testing.T) {
	tests := []struct {
		name           string
		artifactID     string
		artifacts      *mockArtifacts
		expectedStatus int
	}{
		{
			name:       "Success",
			artifactID: "a1",
			artifacts: &mockArtifacts{
				getMeta: artifact.Meta{ID: "a1", Name: "report.html"},
				getData: []byte("<html/>"),
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not Found",
			artifactID:     "missing",
			artifacts:      &mockArtifacts{getErr: artifact.ErrNotFound},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(nil, nil, tt.artifacts, nil)

			mux := http.NewServeMux()
			mux.HandleFunc("GET /artifacts/{id}", h.GetArtifact)

			req := httptest.NewRequest(http.MethodGet, "/artifacts/"+tt.artifactID, nil)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestDownloadArtifact(t *testing.T) {
	h := newTestHandlers(nil, nil, &mockArtifacts{
		getMeta: artifact.Meta{ID: "a1", Name: "report.html"},
		getData: []byte("<html/>"),
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /artifacts/{id}/download", h.DownloadArtifact)

	req := httptest.NewRequest(http.MethodGet, "/artifacts/a1/download", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "<html/>" {
		t.Errorf("expected raw payload, got %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="report.html"` {
		t.Errorf("unexpected content disposition %q", cd)
	}
}
