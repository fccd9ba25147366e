package handlers

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/SherwinAllen/styx/internal/device"
)

func (h *Handlers) deviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrNoDevice):
		h.httpError(w, "No device attached", http.StatusServiceUnavailable)
	case errors.Is(err, device.ErrBadPath):
		h.httpError(w, "Invalid device path", http.StatusBadRequest)
	default:
		h.httpError(w, "Device operation failed", http.StatusInternalServerError)
	}
}

// DeviceStatus handles GET /device/status.
func (h *Handlers) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.device.Status(r.Context())
	if err != nil {
		h.deviceError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, status)
}

// DeviceFolders handles GET /device/folders?path=.
func (h *Handlers) DeviceFolders(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.device.ListFolders(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.deviceError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nodes)
}

// DeviceScan handles GET /device/scan?path=.
// It walks the subtree recursively; deep directories come back partial.
func (h *Handlers) DeviceScan(w http.ResponseWriter, r *http.Request) {
	node, err := h.device.Scan(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.deviceError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, node)
}

// DeviceQuickScan handles GET /device/quick-scan.
func (h *Handlers) DeviceQuickScan(w http.ResponseWriter, r *http.Request) {
	node, err := h.device.QuickScan(r.Context())
	if err != nil {
		h.deviceError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, node)
}

// DevicePreview handles GET /device/preview?path=&content=1.
func (h *Handlers) DevicePreview(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		h.httpError(w, "Path is required", http.StatusBadRequest)
		return
	}

	preview, err := h.device.Preview(r.Context(), p, r.URL.Query().Get("content") == "1")
	if err != nil {
		h.deviceError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, preview)
}

// DevicePull handles GET /device/pull?path=.
// The file is pulled off the device and served as an attachment.
func (h *Handlers) DevicePull(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		h.httpError(w, "Path is required", http.StatusBadRequest)
		return
	}

	tmpDir, err := os.MkdirTemp("", "styx-pull-")
	if err != nil {
		h.httpError(w, "Device operation failed", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmpDir)

	name := path.Base(path.Clean("/" + p))
	dest := filepath.Join(tmpDir, name)
	if err := h.device.Pull(r.Context(), p, dest); err != nil {
		h.deviceError(w, err)
		return
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		h.httpError(w, "Device operation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
