// Package device browses an attached Android device over adb so an
// examiner can inspect its filesystem before and after an acquisition.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SherwinAllen/styx/pkg/api"
)

// ErrNoDevice is returned when no authorized device is attached.
var ErrNoDevice = errors.New("no device attached")

// ErrBadPath is returned for paths that escape the browsing root.
var ErrBadPath = errors.New("invalid device path")

const (
	// maxScanDepth bounds recursive directory scans.
	maxScanDepth = 8
	// maxPreviewBytes caps inline file content.
	maxPreviewBytes = 1 << 20
	// browseRoot is the only subtree exposed to clients.
	browseRoot = "/sdcard"
)

// Bridge shells out to adb for device inspection.
type Bridge struct {
	adbBin string
	logger *slog.Logger
}

// NewBridge creates a bridge using the given adb binary.
func NewBridge(adbBin string, logger *slog.Logger) *Bridge {
	return &Bridge{adbBin: adbBin, logger: logger}
}

func (b *Bridge) run(ctx context.Context, args ...string) (string, error) {
	b.logger.Debug("adb exec", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, b.adbBin, args...)
	output, err := cmd.CombinedOutput()
	out := string(output)
	if err != nil {
		if strings.Contains(out, "no devices") || strings.Contains(out, "device offline") ||
			strings.Contains(out, "device unauthorized") {
			return "", ErrNoDevice
		}
		return "", fmt.Errorf("adb %s: %w: %s", args[0], err, strings.TrimSpace(out))
	}
	return out, nil
}

// Status reports whether an authorized device is attached.
func (b *Bridge) Status(ctx context.Context) (api.DeviceStatusResponse, error) {
	out, err := b.run(ctx, "devices")
	if err != nil {
		return api.DeviceStatusResponse{}, err
	}

	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[1] {
		case "device":
			return api.DeviceStatusResponse{Status: "connected"}, nil
		case "unauthorized":
			return api.DeviceStatusResponse{
				Status:  "unauthorized",
				Message: "Device attached but not authorized. Accept the debugging prompt on the device.",
			}, nil
		}
	}
	return api.DeviceStatusResponse{
		Status:  "disconnected",
		Message: "No device attached.",
	}, nil
}

// devicePath validates a client-supplied path and anchors it under the
// browsing root.
func devicePath(p string) (string, error) {
	if strings.Contains(p, "..") || strings.Contains(p, "//") {
		return "", ErrBadPath
	}
	if p == "" || p == "/" {
		return browseRoot, nil
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasPrefix(p, browseRoot) {
		p = browseRoot + p
	}
	return path.Clean(p), nil
}

// ListFolders returns the immediate children of a device directory.
func (b *Bridge) ListFolders(ctx context.Context, dir string) ([]api.FolderNode, error) {
	full, err := devicePath(dir)
	if err != nil {
		return nil, err
	}

	out, err := b.run(ctx, "shell", "ls", "-p", shellQuote(full))
	if err != nil {
		return nil, err
	}

	var nodes []api.FolderNode
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		node := api.FolderNode{Name: strings.TrimSuffix(name, "/"), Type: "file"}
		if strings.HasSuffix(name, "/") {
			node.Type = "folder"
		}
		node.Path = path.Join(full, node.Name)
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Scan walks a device directory tree down to maxScanDepth. Directories
// deeper than the limit are marked partial rather than descended into.
func (b *Bridge) Scan(ctx context.Context, dir string) (api.FolderNode, error) {
	full, err := devicePath(dir)
	if err != nil {
		return api.FolderNode{}, err
	}
	return b.scanDir(ctx, full, 0)
}

func (b *Bridge) scanDir(ctx context.Context, dir string, depth int) (api.FolderNode, error) {
	node := api.FolderNode{
		Name: path.Base(dir),
		Type: "folder",
		Path: dir,
	}
	if depth >= maxScanDepth {
		node.Partial = true
		node.Info = "scan depth limit reached"
		return node, nil
	}

	children, err := b.ListFolders(ctx, dir)
	if err != nil {
		if errors.Is(err, ErrNoDevice) {
			return api.FolderNode{}, err
		}
		// Unreadable directories appear as empty partial nodes.
		node.Partial = true
		node.Info = "directory not readable"
		return node, nil
	}

	for _, child := range children {
		if child.Type == "file" {
			node.FileCount++
			continue
		}
		sub, err := b.scanDir(ctx, child.Path, depth+1)
		if err != nil {
			return api.FolderNode{}, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}

// QuickScan lists top-level folders with file counts, without recursion.
func (b *Bridge) QuickScan(ctx context.Context) (api.FolderNode, error) {
	root, err := devicePath("/")
	if err != nil {
		return api.FolderNode{}, err
	}

	children, err := b.ListFolders(ctx, root)
	if err != nil {
		return api.FolderNode{}, err
	}

	node := api.FolderNode{Name: path.Base(root), Type: "folder", Path: root}
	for _, child := range children {
		if child.Type == "file" {
			node.FileCount++
			continue
		}
		child.Partial = true
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Preview returns metadata for a device file and, when includeContent is
// set, its content inline. Text files come back verbatim, binary files
// base64 encoded.
func (b *Bridge) Preview(ctx context.Context, file string, includeContent bool) (api.FilePreviewResponse, error) {
	full, err := devicePath(file)
	if err != nil {
		return api.FilePreviewResponse{}, err
	}

	sizeOut, err := b.run(ctx, "shell", "stat", "-c", "%s", shellQuote(full))
	if err != nil {
		return api.FilePreviewResponse{}, err
	}
	size, err := strconv.ParseInt(strings.TrimSpace(sizeOut), 10, 64)
	if err != nil {
		return api.FilePreviewResponse{}, fmt.Errorf("parse file size: %w", err)
	}

	resp := api.FilePreviewResponse{
		Path:     full,
		Name:     path.Base(full),
		Size:     size,
		MimeType: mimeTypeFor(full),
		IsText:   isTextMime(mimeTypeFor(full)),
	}
	if !includeContent {
		return resp, nil
	}
	if size > maxPreviewBytes {
		resp.Preview = "file too large for inline preview"
		return resp, nil
	}

	cmd := exec.CommandContext(ctx, b.adbBin, "exec-out", "cat", full)
	data, err := cmd.Output()
	if err != nil {
		return api.FilePreviewResponse{}, fmt.Errorf("read device file: %w", err)
	}

	sum := sha256.Sum256(data)
	resp.SHA256 = hex.EncodeToString(sum[:])
	if resp.IsText && utf8.Valid(data) {
		resp.Content = string(data)
		resp.Encoding = "utf-8"
	} else {
		resp.Content = base64.StdEncoding.EncodeToString(data)
		resp.Encoding = "base64"
		resp.IsText = false
	}
	return resp, nil
}

// Pull copies a device file to a local path.
func (b *Bridge) Pull(ctx context.Context, file, dest string) error {
	full, err := devicePath(file)
	if err != nil {
		return err
	}
	_, err = b.run(ctx, "pull", full, dest)
	return err
}

func shellQuote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

var mimeByExt = map[string]string{
	".txt":  "text/plain",
	".log":  "text/plain",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".csv":  "text/csv",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
	".db":   "application/x-sqlite3",
}

func mimeTypeFor(p string) string {
	if mt, ok := mimeByExt[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return "application/octet-stream"
}

func isTextMime(mt string) bool {
	return strings.HasPrefix(mt, "text/") ||
		mt == "application/json" || mt == "application/xml"
}
