// Package controller contains the HTTP gateway for the acquisition service.
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/SherwinAllen/styx/internal/controller/handlers"
	"github.com/SherwinAllen/styx/internal/controller/middleware"
)

// Server is the HTTP server for the acquisition API.
type Server struct {
	httpServer *http.Server
}

// New creates a new gateway server. metricsHandler serves /metrics; pass nil
// to disable the endpoint.
func New(addr string, h *handlers.Handlers, metricsHandler http.Handler, rateLimit float64, rateBurst int) *Server {
	limitMW := middleware.RateLimitMiddleware(rateLimit, rateBurst)

	mux := http.NewServeMux()

	// Public client-facing apis
	mux.HandleFunc("POST /acquisitions", h.StartAcquisition)
	mux.HandleFunc("GET /acquisitions/{id}", h.GetAcquisition)
	mux.HandleFunc("POST /acquisitions/{id}/otp", h.SubmitOtp)
	mux.HandleFunc("POST /acquisitions/{id}/confirm", h.ConfirmChallenge)
	mux.HandleFunc("POST /acquisitions/{id}/cancel", h.CancelAcquisition)
	mux.HandleFunc("GET /acquisitions/{id}/result", h.GetResult)

	mux.HandleFunc("GET /artifacts", h.ListArtifacts)
	mux.HandleFunc("GET /artifacts/{id}", h.GetArtifact)
	mux.HandleFunc("GET /artifacts/{id}/download", h.DownloadArtifact)

	mux.HandleFunc("GET /device/status", h.DeviceStatus)
	mux.HandleFunc("GET /device/folders", h.DeviceFolders)
	mux.HandleFunc("GET /device/scan", h.DeviceScan)
	mux.HandleFunc("GET /device/quick-scan", h.DeviceQuickScan)
	mux.HandleFunc("GET /device/preview", h.DevicePreview)
	mux.HandleFunc("GET /device/pull", h.DevicePull)

	// Internal endpoints
	// These are polled by the step subprocesses and must not be reachable
	// from outside the host.
	mux.Handle("GET /internal/acquisitions/{id}/input",
		middleware.InternalOnly(http.HandlerFunc(h.InternalChallengeInput)))
	mux.Handle("POST /internal/acquisitions/{id}/input/clear",
		middleware.InternalOnly(http.HandlerFunc(h.InternalClearInput)))
	mux.Handle("POST /internal/acquisitions/{id}/challenge",
		middleware.InternalOnly(http.HandlerFunc(h.InternalChallengeUpdate)))

	mux.HandleFunc("GET /healthz", h.Healthz)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      limitMW(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
