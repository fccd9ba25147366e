package pipeline

import (
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/SherwinAllen/styx/internal/acquisition"
)

type cancelRecorder struct {
	mu    sync.Mutex
	calls []struct {
		kind acquisition.ErrorKind
		msg  string
	}
}

func (c *cancelRecorder) fn(kind acquisition.ErrorKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, struct {
		kind acquisition.ErrorKind
		msg  string
	}{kind, msg})
}

func (c *cancelRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestMediator(t *testing.T) (*Mediator, *acquisition.Store, *cancelRecorder) {
	t.Helper()
	store := acquisition.NewStore()
	id := store.Create()
	rec := &cancelRecorder{}
	m := NewMediator(store, id, 3, slog.New(slog.DiscardHandler), rec.fn)
	return m, store, rec
}

func TestMediatorAuthCompleted(t *testing.T) {
	m, store, _ := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventPushChallenge})
	m.HandleEvent(Event{Kind: EventAuthCompleted})

	job, err := store.Get(m.jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !job.AuthCompleted {
		t.Error("expected AuthCompleted to be set")
	}
	if job.Status != acquisition.StatusRunning {
		t.Errorf("expected status running, got %s", job.Status)
	}
	if job.Challenge == nil || job.Challenge.Visible {
		t.Error("expected challenge to be hidden after auth completion")
	}
	if job.Progress != 50 {
		t.Errorf("expected progress 50, got %d", job.Progress)
	}
}

func TestMediatorChallengeDetection(t *testing.T) {
	tests := []struct {
		name     string
		event    EventKind
		wantKind acquisition.ChallengeKind
	}{
		{"otp challenge", EventOtpChallenge, acquisition.ChallengeOtp},
		{"push challenge", EventPushChallenge, acquisition.ChallengePush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newTestMediator(t)

			m.HandleEvent(Event{Kind: EventCurrentURL, Detail: "https://auth.example.com/verify"})
			m.HandleEvent(Event{Kind: tt.event})

			job, err := store.Get(m.jobID)
			if err != nil {
				t.Fatalf("get job: %v", err)
			}
			if job.Status != acquisition.StatusWaitingForChallenge {
				t.Errorf("expected waiting_for_challenge, got %s", job.Status)
			}
			if job.Challenge == nil {
				t.Fatal("expected challenge record")
			}
			if job.Challenge.Kind != tt.wantKind {
				t.Errorf("expected challenge kind %s, got %s", tt.wantKind, job.Challenge.Kind)
			}
			if !job.Challenge.Visible {
				t.Error("expected challenge to be visible")
			}
			if job.Challenge.DetectedURL != "https://auth.example.com/verify" {
				t.Errorf("unexpected detected URL %q", job.Challenge.DetectedURL)
			}
			if job.Progress != 40 {
				t.Errorf("expected progress 40, got %d", job.Progress)
			}
		})
	}
}

func TestMediatorChallengeIgnoredAfterAuth(t *testing.T) {
	m, store, _ := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventAuthCompleted})
	m.HandleEvent(Event{Kind: EventOtpChallenge})

	job, _ := store.Get(m.jobID)
	if job.Status != acquisition.StatusRunning {
		t.Errorf("expected status running, got %s", job.Status)
	}
	if job.Challenge != nil {
		t.Error("expected no challenge after auth completion")
	}
}

func TestMediatorOtpRetryBudget(t *testing.T) {
	m, store, rec := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventOtpChallenge})

	// First two rejections re-arm the challenge.
	for i := 1; i <= 2; i++ {
		m.HandleEvent(Event{Kind: EventOtpRejected})

		job, _ := store.Get(m.jobID)
		if job.Status != acquisition.StatusWaitingForChallenge {
			t.Fatalf("rejection %d: expected waiting_for_challenge, got %s", i, job.Status)
		}
		if job.ErrorKind != acquisition.ErrorInvalidOtp {
			t.Fatalf("rejection %d: expected INVALID_OTP, got %s", i, job.ErrorKind)
		}
		if job.Challenge.RetryCount != i {
			t.Fatalf("rejection %d: expected retry count %d, got %d", i, i, job.Challenge.RetryCount)
		}
		if job.Challenge.OtpError == "" {
			t.Fatalf("rejection %d: expected otp error message", i)
		}
		if rec.count() != 0 {
			t.Fatalf("rejection %d: cancel invoked prematurely", i)
		}
	}

	// Third rejection exhausts the budget.
	m.HandleEvent(Event{Kind: EventOtpRejected})
	if rec.count() != 1 {
		t.Fatalf("expected one cancel call, got %d", rec.count())
	}
	if rec.calls[0].kind != acquisition.ErrorMaxRetries {
		t.Errorf("expected MAX_OTP_RETRIES_EXCEEDED, got %s", rec.calls[0].kind)
	}
}

func TestMediatorOtpRetryResetsProgress(t *testing.T) {
	m, store, _ := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventOtpChallenge})
	m.HandleEvent(Event{Kind: EventSecureChannel})

	job, _ := store.Get(m.jobID)
	if job.Progress != 45 {
		t.Fatalf("expected progress 45 before rejection, got %d", job.Progress)
	}

	m.HandleEvent(Event{Kind: EventOtpRejected})

	job, _ = store.Get(m.jobID)
	if job.Progress != 40 {
		t.Errorf("expected progress reset to 40, got %d", job.Progress)
	}
}

func TestMediatorOtpAcceptedClearsErrorState(t *testing.T) {
	m, store, _ := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventOtpChallenge})
	m.HandleEvent(Event{Kind: EventOtpRejected})
	m.HandleEvent(Event{Kind: EventOtpAccepted})

	job, _ := store.Get(m.jobID)
	if job.ErrorKind != acquisition.ErrorNone {
		t.Errorf("expected error kind cleared, got %s", job.ErrorKind)
	}
	if job.Challenge.OtpError != "" {
		t.Errorf("expected otp error cleared, got %q", job.Challenge.OtpError)
	}
	if job.Challenge.RetryCount != 0 {
		t.Errorf("expected retry count reset, got %d", job.Challenge.RetryCount)
	}
	if job.Status != acquisition.StatusRunning {
		t.Errorf("expected status running, got %s", job.Status)
	}
}

func TestMediatorTerminalEvents(t *testing.T) {
	tests := []struct {
		name     string
		event    EventKind
		wantKind acquisition.ErrorKind
	}{
		{"invalid email", EventInvalidEmail, acquisition.ErrorInvalidEmail},
		{"incorrect password", EventIncorrectPassword, acquisition.ErrorIncorrectPassword},
		{"push denied", EventPushDenied, acquisition.ErrorPushDenied},
		{"unknown challenge page", EventUnknownChallenge, acquisition.ErrorUnknownChallenge},
		{"unexpected error", EventUnexpectedError, acquisition.ErrorGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, rec := newTestMediator(t)

			m.HandleEvent(Event{Kind: tt.event})

			if rec.count() != 1 {
				t.Fatalf("expected one cancel call, got %d", rec.count())
			}
			if rec.calls[0].kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, rec.calls[0].kind)
			}
			if rec.calls[0].msg == "" || strings.Contains(rec.calls[0].msg, "ERROR") {
				t.Errorf("expected sanitized user message, got %q", rec.calls[0].msg)
			}

			job, _ := store.Get(m.jobID)
			if len(job.Log) == 0 {
				t.Error("expected a user-facing log entry")
			}
		})
	}
}

func TestMediatorTerminalIgnoredAfterAuth(t *testing.T) {
	m, _, rec := newTestMediator(t)

	m.HandleEvent(Event{Kind: EventAuthCompleted})
	m.HandleEvent(Event{Kind: EventUnexpectedError})

	if rec.count() != 0 {
		t.Errorf("expected no cancel after auth completion, got %d", rec.count())
	}
}

func TestMediatorPublishChallenge(t *testing.T) {
	m, store, _ := newTestMediator(t)

	m.PublishChallenge(acquisition.ChallengeOtp, "Enter the 6-digit code sent to your phone", "https://auth.example.com/otp")

	job, _ := store.Get(m.jobID)
	if job.Challenge == nil {
		t.Fatal("expected challenge record")
	}
	if job.Challenge.Prompt != "Enter the 6-digit code sent to your phone" {
		t.Errorf("unexpected prompt %q", job.Challenge.Prompt)
	}
	if job.Challenge.DetectedURL != "https://auth.example.com/otp" {
		t.Errorf("unexpected url %q", job.Challenge.DetectedURL)
	}
	if job.Status != acquisition.StatusWaitingForChallenge {
		t.Errorf("expected waiting_for_challenge, got %s", job.Status)
	}
}
