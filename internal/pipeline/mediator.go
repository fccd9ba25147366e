package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/SherwinAllen/styx/internal/acquisition"
)

// User-facing messages attached to the job log and error field. Raw
// subprocess output never reaches the client.
const (
	msgAuthCompleted   = "Authentication completed successfully"
	msgOtpAccepted     = "OTP verification successful. Continuing data extraction..."
	msgOtpPrompt       = "A one-time verification code is required. Enter the code to continue."
	msgPushPrompt      = "Push notification sent to your device. Please approve to continue..."
	msgSecureChannel   = "Secure connection established successfully"
	msgOtpInvalid      = "The code you entered is not valid. Please check the code and try again."
	msgMaxRetries      = "Too many failed OTP attempts. Please try again later."
	msgInvalidEmail    = "The email address is not associated with an account. Please check the email and try again."
	msgBadPassword     = "The password is incorrect. Please check your password and try again."
	msgPushDenied      = "Sign-in was denied from your device. Please try again and approve the notification."
	msgUnknownPage     = "This account requires additional verification that cannot be automated. Please try again later."
	msgUnexpectedError = "An unexpected error occurred during authentication. Please try again."
)

// Progress milestones during authentication.
const (
	progressChallenge   = 40
	progressSecure      = 45
	progressAuthDone    = 50
	authRetryResetPoint = 40
)

// Mediator is the authentication-challenge state machine layered over the
// auth step's classified output. It is scoped to the first pipeline step:
// once the job's AuthCompleted flag is set, challenge events are ignored so
// duplicated stdout/stderr lines cannot re-open a resolved challenge.
type Mediator struct {
	store      *acquisition.Store
	jobID      uuid.UUID
	maxRetries int
	logger     *slog.Logger

	// cancel is the unified cancellation routine, invoked asynchronously
	// so a terminal event observed mid-stream never deadlocks against the
	// runner draining the same stream.
	cancel func(kind acquisition.ErrorKind, message string)

	mu      sync.Mutex
	lastURL string
}

// NewMediator creates a mediator for one job.
func NewMediator(store *acquisition.Store, jobID uuid.UUID, maxRetries int, logger *slog.Logger, cancel func(acquisition.ErrorKind, string)) *Mediator {
	return &Mediator{
		store:      store,
		jobID:      jobID,
		maxRetries: maxRetries,
		logger:     logger,
		cancel:     cancel,
	}
}

// HandleEvent applies one classified output event to the job record.
func (m *Mediator) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventCurrentURL:
		m.setURL(ev.Detail)
	case EventAuthCompleted:
		m.authCompleted()
	case EventOtpAccepted:
		m.otpAccepted()
	case EventOtpChallenge:
		m.challengeDetected(acquisition.ChallengeOtp, msgOtpPrompt)
	case EventPushChallenge:
		m.challengeDetected(acquisition.ChallengePush, msgPushPrompt)
	case EventSecureChannel:
		m.secureChannel()
	case EventOtpRejected:
		m.otpRejected()
	case EventInvalidEmail:
		m.terminal(acquisition.ErrorInvalidEmail, msgInvalidEmail)
	case EventIncorrectPassword:
		m.terminal(acquisition.ErrorIncorrectPassword, msgBadPassword)
	case EventPushDenied:
		m.terminal(acquisition.ErrorPushDenied, msgPushDenied)
	case EventUnknownChallenge:
		m.terminal(acquisition.ErrorUnknownChallenge, msgUnknownPage)
	case EventUnexpectedError:
		m.terminal(acquisition.ErrorGeneric, msgUnexpectedError)
	}
}

// PublishChallenge records challenge details announced by the subprocess
// through the internal endpoint. Markers remain the transition triggers;
// this only enriches what pollers see.
func (m *Mediator) PublishChallenge(kind acquisition.ChallengeKind, prompt, detectedURL string) {
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() {
			return
		}
		c := j.EnsureChallenge(kind, m.maxRetries)
		if prompt != "" {
			c.Prompt = prompt
		}
		if detectedURL != "" {
			c.DetectedURL = detectedURL
		}
		c.Visible = true
		j.Status = acquisition.StatusWaitingForChallenge
	})
}

func (m *Mediator) setURL(url string) {
	m.mu.Lock()
	m.lastURL = url
	m.mu.Unlock()

	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.Challenge != nil {
			j.Challenge.DetectedURL = url
		}
	})
}

func (m *Mediator) authCompleted() {
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() {
			return
		}
		j.AuthCompleted = true
		j.ErrorKind = acquisition.ErrorNone
		j.Error = ""
		if j.Challenge != nil {
			j.Challenge.Visible = false
			j.Challenge.OtpError = ""
		}
		j.Status = acquisition.StatusRunning
		j.AppendLog(msgAuthCompleted, progressAuthDone)
	})
}

func (m *Mediator) otpAccepted() {
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.Status.Terminal() {
			return
		}
		j.ErrorKind = acquisition.ErrorNone
		j.Error = ""
		j.Otp = ""
		if j.Challenge != nil {
			j.Challenge.Visible = false
			j.Challenge.OtpError = ""
			j.Challenge.RetryCount = 0
		}
		j.Status = acquisition.StatusRunning
		j.AppendLog(msgOtpAccepted, progressAuthDone)
	})
}

func (m *Mediator) challengeDetected(kind acquisition.ChallengeKind, prompt string) {
	m.mu.Lock()
	url := m.lastURL
	m.mu.Unlock()

	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() {
			return
		}
		c := j.EnsureChallenge(kind, m.maxRetries)
		if c.Prompt == "" {
			c.Prompt = prompt
		}
		if url != "" && c.DetectedURL == "" {
			c.DetectedURL = url
		}
		c.Visible = true
		j.Status = acquisition.StatusWaitingForChallenge
		j.AppendLog(prompt, progressChallenge)
	})
}

func (m *Mediator) secureChannel() {
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() {
			return
		}
		j.AppendLog(msgSecureChannel, progressSecure)
	})
}

// otpRejected increments the retry count and either re-arms the challenge or,
// once the budget is exhausted, forces cancellation with MaxRetriesExceeded.
func (m *Mediator) otpRejected() {
	exhausted := false
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() || j.Cancelling {
			return
		}
		c := j.EnsureChallenge(acquisition.ChallengeOtp, m.maxRetries)
		c.RetryCount++
		if c.RetryCount >= c.MaxRetries {
			exhausted = true
			// Recorded here so the step loop sees a non-recoverable
			// kind even before the cancel goroutine runs.
			j.ErrorKind = acquisition.ErrorMaxRetries
			j.Error = msgMaxRetries
			j.AppendLog(msgMaxRetries, -1)
			return
		}
		j.ErrorKind = acquisition.ErrorInvalidOtp
		j.Otp = ""
		c.OtpError = msgOtpInvalid
		c.Visible = true
		j.Status = acquisition.StatusWaitingForChallenge
		j.ResetProgressForRetry(authRetryResetPoint)
		j.AppendLog(fmt.Sprintf("OTP verification failed. Please enter the correct code. (Attempt %d of %d)", c.RetryCount, c.MaxRetries), -1)
	})

	if exhausted {
		m.logger.Warn("otp retry budget exhausted", "job_id", m.jobID, "max_retries", m.maxRetries)
		m.cancel(acquisition.ErrorMaxRetries, msgMaxRetries)
	}
}

// terminal records a non-recoverable auth failure and hands off to the
// unified cancellation routine.
func (m *Mediator) terminal(kind acquisition.ErrorKind, message string) {
	skip := false
	m.store.Mutate(m.jobID, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() || j.Cancelling {
			skip = true
			return
		}
		j.ErrorKind = kind
		j.Error = message
		j.AppendLog(message, -1)
	})
	if skip {
		return
	}

	m.logger.Warn("terminal authentication failure", "job_id", m.jobID, "kind", kind)
	m.cancel(kind, message)
}
