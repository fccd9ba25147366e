// Package config handles environment variable loading for ports, paths, pipeline tuning, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the styx server.
type Config struct {
	// HTTP server port
	HTTPPort int

	// Directory containing the external step scripts
	ScriptsDir string

	// Interpreter used to launch step scripts
	PythonBin string

	// Path to the adb binary for the device bridge
	AdbBin string

	// Path to the SQLite artifact database
	ArtifactDBPath string

	// Root directory for per-job workspaces
	WorkDir string

	// Maximum OTP retry attempts before an acquisition is cancelled
	OtpMaxRetries int

	// Grace period between SIGTERM and SIGKILL during cancellation
	CancelGracePeriod time.Duration

	// How long terminal jobs are kept before the store sweeps them
	JobRetention time.Duration

	// Base URL the step subprocesses use to reach the internal endpoints
	InternalBaseURL string

	// OTLP collector endpoint for tracing; empty disables tracing
	OTELEndpoint string

	// Requests per second allowed per client; 0 disables rate limiting
	RateLimit float64

	// Burst size for the rate limiter
	RateLimitBurst int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:          5000,
		ScriptsDir:        "scripts",
		PythonBin:         "python3",
		AdbBin:            "adb",
		ArtifactDBPath:    "styx-artifacts.db",
		WorkDir:           os.TempDir(),
		OtpMaxRetries:     3,
		CancelGracePeriod: 3 * time.Second,
		JobRetention:      24 * time.Hour,
		RateLimit:         0,
		RateLimitBurst:    20,
	}

	if portStr := os.Getenv("STYX_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid STYX_PORT: %w", err)
		}
		cfg.HTTPPort = p
	}

	if v := os.Getenv("STYX_SCRIPTS_DIR"); v != "" {
		cfg.ScriptsDir = v
	}
	if v := os.Getenv("STYX_PYTHON_BIN"); v != "" {
		cfg.PythonBin = v
	}
	if v := os.Getenv("STYX_ADB_BIN"); v != "" {
		cfg.AdbBin = v
	}
	if v := os.Getenv("STYX_ARTIFACT_DB"); v != "" {
		cfg.ArtifactDBPath = v
	}
	if v := os.Getenv("STYX_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}

	if v := os.Getenv("STYX_OTP_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid STYX_OTP_MAX_RETRIES: %q", v)
		}
		cfg.OtpMaxRetries = n
	}

	if v := os.Getenv("STYX_CANCEL_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STYX_CANCEL_GRACE: %w", err)
		}
		cfg.CancelGracePeriod = d
	}

	if v := os.Getenv("STYX_JOB_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STYX_JOB_RETENTION: %w", err)
		}
		cfg.JobRetention = d
	}

	cfg.InternalBaseURL = os.Getenv("STYX_INTERNAL_URL")
	if cfg.InternalBaseURL == "" {
		cfg.InternalBaseURL = fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
	}

	cfg.OTELEndpoint = os.Getenv("STYX_OTEL_ENDPOINT")

	if v := os.Getenv("STYX_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid STYX_RATE_LIMIT: %q", v)
		}
		cfg.RateLimit = f
	}

	if v := os.Getenv("STYX_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid STYX_RATE_LIMIT_BURST: %q", v)
		}
		cfg.RateLimitBurst = n
	}

	return cfg, nil
}
