package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/SherwinAllen/styx/pkg/api"
)

func TestOtpCommand_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/acquisitions/job-1/otp") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req api.SubmitOtpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Code != "123456" {
			t.Errorf("expected code 123456, got %q", req.Code)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "submitted"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"otp", "job-1", "123456"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Code submitted") {
		t.Errorf("expected confirmation, got: %s", stdout.String())
	}
}

func TestCancelCommand_UnknownJob(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Job not found"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"cancel", "job-1"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Failed to cancel") {
		t.Errorf("expected failure message, got: %s", stdout.String())
	}
}
