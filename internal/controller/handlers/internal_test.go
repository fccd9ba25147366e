package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/pkg/api"
)

func TestInternalChallengeInput(t *testing.T) {
	jobID := uuid.New()
	p := &mockPipeline{
		inputOtp:     "654321",
		inputVisible: true,
	}
	h := newTestHandlers(p, nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /internal/acquisitions/{id}/input", h.InternalChallengeInput)

	req := httptest.NewRequest(http.MethodGet, "/internal/acquisitions/"+jobID.String()+"/input", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp api.ChallengeInputResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Otp != "654321" || !resp.Visible {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestInternalChallengeUpdate(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedKind   acquisition.ChallengeKind
	}{
		{
			name:           "Otp Challenge",
			body:           `{"kind":"otp","prompt":"Enter the code"}`,
			expectedStatus: http.StatusOK,
			expectedKind:   acquisition.ChallengeOtp,
		},
		{
			name:           "Push Challenge",
			body:           `{"kind":"push"}`,
			expectedStatus: http.StatusOK,
			expectedKind:   acquisition.ChallengePush,
		},
		{
			name:           "Unknown Kind",
			body:           `{"kind":"carrier-pigeon"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid JSON",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPipeline{}
			h := newTestHandlers(p, nil, nil, nil)

			mux := http.NewServeMux()
			mux.HandleFunc("POST /internal/acquisitions/{id}/challenge", h.InternalChallengeUpdate)

			req := httptest.NewRequest(http.MethodPost, "/internal/acquisitions/"+jobID.String()+"/challenge", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusOK && p.lastKind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, p.lastKind)
			}
		})
	}
}

func TestInternalClearInput(t *testing.T) {
	jobID := uuid.New()
	h := newTestHandlers(&mockPipeline{}, nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/acquisitions/{id}/input/clear", h.InternalClearInput)

	req := httptest.NewRequest(http.MethodPost, "/internal/acquisitions/"+jobID.String()+"/input/clear", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "cleared") {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}
