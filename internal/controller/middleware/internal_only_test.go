package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalOnly(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		expectedStatus int
	}{
		{"loopback ipv4", "127.0.0.1:54321", http.StatusOK},
		{"loopback ipv6", "[::1]:54321", http.StatusOK},
		{"external client", "203.0.113.9:54321", http.StatusForbidden},
		{"unparseable addr", "not-an-address", http.StatusForbidden},
	}

	handler := InternalOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/internal/acquisitions/x/input", nil)
			req.RemoteAddr = tt.remoteAddr
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}
