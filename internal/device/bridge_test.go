package device

import (
	"testing"
)

func TestDevicePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"empty maps to root", "", "/sdcard", false},
		{"slash maps to root", "/", "/sdcard", false},
		{"relative anchored", "DCIM/Camera", "/sdcard/DCIM/Camera", false},
		{"absolute under root kept", "/sdcard/Download", "/sdcard/Download", false},
		{"outside root anchored", "/Download", "/sdcard/Download", false},
		{"dotdot rejected", "/sdcard/../etc", "", true},
		{"double slash rejected", "/sdcard//Download", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := devicePath(tt.in)
			if tt.wantErr {
				if err != ErrBadPath {
					t.Errorf("expected ErrBadPath, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("devicePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sdcard/notes.txt", "text/plain"},
		{"/sdcard/DCIM/IMG_0001.JPG", "image/jpeg"},
		{"/sdcard/export.json", "application/json"},
		{"/sdcard/backup.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeTypeFor(tt.path); got != tt.want {
			t.Errorf("mimeTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsTextMime(t *testing.T) {
	if !isTextMime("text/plain") || !isTextMime("application/json") {
		t.Error("expected text mime types to be text")
	}
	if isTextMime("image/png") || isTextMime("application/octet-stream") {
		t.Error("expected binary mime types not to be text")
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("/sdcard/My Files"); got != "'/sdcard/My Files'" {
		t.Errorf("unexpected quoting %q", got)
	}
	if got := shellQuote("/sdcard/it's"); got != `'/sdcard/it'\''s'` {
		t.Errorf("unexpected quoting %q", got)
	}
}
