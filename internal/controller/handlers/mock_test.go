package handlers

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/pkg/api"
)

type mockPipeline struct {
	launchID uuid.UUID

	submitOtpErr error
	confirmErr   error
	cancelErr    error
	publishErr   error
	clearErr     error

	inputOtp       string
	inputConfirmed bool
	inputVisible   bool
	inputOtpError  string
	inputErr       error

	lastOtp    string
	lastKind   acquisition.ChallengeKind
	lastPrompt string
	cancelled  []uuid.UUID
}

func (m *mockPipeline) Launch(email, password, source string) uuid.UUID {
	return m.launchID
}

func (m *mockPipeline) SubmitOtp(id uuid.UUID, code string) error {
	m.lastOtp = code
	return m.submitOtpErr
}

func (m *mockPipeline) Confirm(id uuid.UUID) error {
	return m.confirmErr
}

func (m *mockPipeline) RequestCancel(id uuid.UUID) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockPipeline) PublishChallenge(id uuid.UUID, kind acquisition.ChallengeKind, prompt, detectedURL string) error {
	m.lastKind = kind
	m.lastPrompt = prompt
	return m.publishErr
}

func (m *mockPipeline) ChallengeInput(id uuid.UUID) (string, bool, bool, string, error) {
	return m.inputOtp, m.inputConfirmed, m.inputVisible, m.inputOtpError, m.inputErr
}

func (m *mockPipeline) ClearChallengeInput(id uuid.UUID) error {
	return m.clearErr
}

type mockJobs struct {
	snap acquisition.Snapshot
	err  error
}

func (m *mockJobs) Get(id uuid.UUID) (acquisition.Snapshot, error) {
	return m.snap, m.err
}

type mockArtifacts struct {
	metas   []artifact.Meta
	listErr error

	getMeta artifact.Meta
	getData []byte
	getErr  error
}

func (m *mockArtifacts) List(ctx context.Context) ([]artifact.Meta, error) {
	return m.metas, m.listErr
}

func (m *mockArtifacts) ListByJob(ctx context.Context, jobID string) ([]artifact.Meta, error) {
	return m.metas, m.listErr
}

func (m *mockArtifacts) Get(ctx context.Context, id string) (artifact.Meta, []byte, error) {
	return m.getMeta, m.getData, m.getErr
}

type mockDevice struct {
	status     api.DeviceStatusResponse
	folders    []api.FolderNode
	scanNode   api.FolderNode
	preview    api.FilePreviewResponse
	pullData   []byte
	err        error
	lastPath   string
	lastInline bool
}

func (m *mockDevice) Status(ctx context.Context) (api.DeviceStatusResponse, error) {
	return m.status, m.err
}

func (m *mockDevice) ListFolders(ctx context.Context, dir string) ([]api.FolderNode, error) {
	m.lastPath = dir
	return m.folders, m.err
}

func (m *mockDevice) Scan(ctx context.Context, dir string) (api.FolderNode, error) {
	m.lastPath = dir
	return m.scanNode, m.err
}

func (m *mockDevice) QuickScan(ctx context.Context) (api.FolderNode, error) {
	return m.scanNode, m.err
}

func (m *mockDevice) Preview(ctx context.Context, file string, includeContent bool) (api.FilePreviewResponse, error) {
	m.lastPath = file
	m.lastInline = includeContent
	return m.preview, m.err
}

func (m *mockDevice) Pull(ctx context.Context, file, dest string) error {
	m.lastPath = file
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(dest, m.pullData, 0o644)
}

func newTestHandlers(p *mockPipeline, j *mockJobs, a *mockArtifacts, d *mockDevice) *Handlers {
	if p == nil {
		p = &mockPipeline{}
	}
	if j == nil {
		j = &mockJobs{}
	}
	if a == nil {
		a = &mockArtifacts{}
	}
	if d == nil {
		d = &mockDevice{}
	}
	return New(p, j, a, d)
}
