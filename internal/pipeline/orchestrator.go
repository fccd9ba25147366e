package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/internal/config"
)

const (
	msgStarted       = "Starting data acquisition..."
	msgVerifyingCode = "Verifying the code..."
	msgCancelled     = "Data acquisition was cancelled by user."
	msgComplete      = "Data extraction complete! Your report is ready."
	reportFileName   = "report.html"
)

// Orchestrator drives acquisition jobs through the step pipeline. One
// goroutine per job; all state flows through the job store.
type Orchestrator struct {
	store     *acquisition.Store
	artifacts *artifact.Store
	runner    *Runner
	cfg       *config.Config
	logger    *slog.Logger
	steps     []StepSpec

	// ctx bounds every subprocess; cancelled on daemon shutdown.
	ctx context.Context

	tracer    trace.Tracer
	completed metric.Int64Counter
	failed    metric.Int64Counter
	cancelled metric.Int64Counter
}

// New creates an orchestrator. ctx should outlive the HTTP server so
// in-flight jobs are killed only on process shutdown.
func New(ctx context.Context, store *acquisition.Store, artifacts *artifact.Store, cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	meter := otel.Meter("styx.pipeline")

	completed, err := meter.Int64Counter("styx.acquisitions.completed",
		metric.WithDescription("Number of acquisitions that finished successfully"))
	if err != nil {
		return nil, fmt.Errorf("create completed counter: %w", err)
	}
	failed, err := meter.Int64Counter("styx.acquisitions.failed",
		metric.WithDescription("Number of acquisitions that ended in error"))
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}
	cancelled, err := meter.Int64Counter("styx.acquisitions.cancelled",
		metric.WithDescription("Number of acquisitions cancelled before completion"))
	if err != nil {
		return nil, fmt.Errorf("create cancelled counter: %w", err)
	}

	return &Orchestrator{
		store:     store,
		artifacts: artifacts,
		runner:    NewRunner(store, logger),
		cfg:       cfg,
		logger:    logger,
		steps:     DefaultSteps(),
		ctx:       ctx,
		tracer:    otel.Tracer("styx.pipeline"),
		completed: completed,
		failed:    failed,
		cancelled: cancelled,
	}, nil
}

// Launch creates a job record and starts its pipeline goroutine. The
// credentials are passed to the subprocesses through the environment and
// are never written to the store.
func (o *Orchestrator) Launch(email, password, source string) uuid.UUID {
	id := o.store.Create()
	o.store.Mutate(id, func(j *acquisition.Job) {
		j.AppendLog(msgStarted, 5)
	})

	go o.run(id, email, password, source)
	return id
}

func (o *Orchestrator) run(id uuid.UUID, email, password, source string) {
	ctx, span := o.tracer.Start(o.ctx, "acquisition.run",
		trace.WithAttributes(attribute.String("job.id", id.String())))
	defer span.End()

	log := o.logger.With("job_id", id)

	workDir := filepath.Join(o.cfg.WorkDir, id.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		log.Error("create job workspace", "error", err)
		o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
		return
	}

	env := []string{
		"ACQ_EMAIL=" + email,
		"ACQ_PASSWORD=" + password,
		"ACQ_SOURCE=" + source,
		"ACQ_JOB_ID=" + id.String(),
		"ACQ_WORK_DIR=" + workDir,
		"ACQ_INTERNAL_URL=" + o.cfg.InternalBaseURL,
	}

	mediator := NewMediator(o.store, id, o.cfg.OtpMaxRetries, log, func(kind acquisition.ErrorKind, msg string) {
		// Cancellation waits for the runner to drain the pipes the
		// mediator is fed from, so it must not run on the sink
		// goroutine.
		go o.Cancel(id, kind, msg)
	})

	for _, step := range o.steps {
		if o.terminalOrCancelling(id) {
			return
		}

		o.store.Mutate(id, func(j *acquisition.Job) {
			j.Step = step.Name
			if j.Status == acquisition.StatusStarted || j.Status == acquisition.StatusRunning {
				j.Status = acquisition.StatusRunning
				j.AppendLog(step.StartMessage, step.StartProgress)
			}
		})

		argv := []string{o.cfg.PythonBin, filepath.Join(o.cfg.ScriptsDir, step.Script)}
		sink := o.sinkFor(id, step.Name, mediator)

		stepCtx, stepSpan := o.tracer.Start(ctx, "acquisition.step",
			trace.WithAttributes(attribute.String("step", string(step.Name))))
		res, err := o.runner.Run(stepCtx, id, step.Name, argv, env, sink)
		stepSpan.SetAttributes(attribute.Int("exit_code", res.ExitCode))
		stepSpan.End()

		if err != nil {
			log.Error("step failed to run", "step", step.Name, "error", err)
			o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
			return
		}

		if !o.afterStep(id, step, res, log) {
			return
		}
	}

	o.finish(ctx, id, workDir, log)
}

// afterStep decides whether the pipeline continues past a finished step.
func (o *Orchestrator) afterStep(id uuid.UUID, step StepSpec, res Result, log *slog.Logger) bool {
	snap, err := o.store.Get(id)
	if err != nil {
		return false
	}

	// A terminal error observed on the stream has already routed through
	// Cancel; the status mutation may still be in flight on another
	// goroutine, so check the kind as well as the status.
	if snap.Status.Terminal() || snap.Cancelling {
		return false
	}
	if snap.ErrorKind != acquisition.ErrorNone && !snap.ErrorKind.Recoverable() {
		return false
	}

	if step.Name == acquisition.StepAuth {
		// The auth subprocess exiting while an invalid code is
		// outstanding leaves nothing to verify a resubmission, so the
		// run stops here rather than proceeding unauthenticated.
		if snap.ErrorKind == acquisition.ErrorInvalidOtp {
			log.Warn("auth step exited with unresolved otp", "exit_code", res.ExitCode)
			o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
			return false
		}
		if !snap.AuthCompleted {
			log.Warn("auth step exited without completing", "exit_code", res.ExitCode)
			o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
			return false
		}
		// A non-zero exit after successful authentication is a teardown
		// hiccup in the subprocess, not a pipeline failure.
		return true
	}

	if res.ExitCode != 0 {
		if step.BestEffort {
			log.Warn("best-effort step failed, continuing", "step", step.Name, "exit_code", res.ExitCode)
			return true
		}
		log.Error("step exited non-zero", "step", step.Name, "exit_code", res.ExitCode)
		o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
		return false
	}
	return true
}

func (o *Orchestrator) finish(ctx context.Context, id uuid.UUID, workDir string, log *slog.Logger) {
	reportPath := filepath.Join(workDir, reportFileName)
	data, err := os.ReadFile(reportPath)
	if err != nil {
		log.Error("read report", "path", reportPath, "error", err)
		o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
		return
	}

	meta, err := o.artifacts.Save(ctx, id.String(), reportFileName, "report", data)
	if err != nil {
		log.Error("store report artifact", "error", err)
		o.Cancel(id, acquisition.ErrorGeneric, msgUnexpectedError)
		return
	}

	o.store.Mutate(id, func(j *acquisition.Job) {
		j.Step = acquisition.StepDone
		j.Status = acquisition.StatusCompleted
		j.ArtifactID = meta.ID
		j.AppendLog(msgComplete, 100)
	})
	o.completed.Add(ctx, 1)
	log.Info("acquisition completed", "artifact_id", meta.ID, "report_bytes", len(data))
}

// sinkFor builds the per-step output handler mapping classified lines to
// job-record updates.
func (o *Orchestrator) sinkFor(id uuid.UUID, step acquisition.Step, mediator *Mediator) func(string) {
	switch step {
	case acquisition.StepAuth:
		c := NewAuthClassifier()
		return func(line string) {
			if ev, ok := c.Classify(line); ok {
				mediator.HandleEvent(ev)
			}
		}
	case acquisition.StepFetch:
		c := NewFetchClassifier()
		return func(line string) {
			ev, ok := c.Classify(line)
			if !ok {
				return
			}
			switch ev.Kind {
			case EventFetchProgress:
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog(fmt.Sprintf("Extracted data from %d activities so far...", ev.M), fetchProgress(ev.M))
				})
			case EventFetchComplete:
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog(fmt.Sprintf("Activity extraction complete (%d records)", ev.N), 90)
				})
			}
		}
	case acquisition.StepSync:
		c := NewSyncClassifier()
		return func(line string) {
			if ev, ok := c.Classify(line); ok && ev.Kind == EventSyncComplete {
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog(fmt.Sprintf("Data organization complete (%d entries processed)", ev.N), 94)
				})
			}
		}
	case acquisition.StepDownload:
		c := NewDownloadClassifier()
		return func(line string) {
			if ev, ok := c.Classify(line); ok && ev.Kind == EventDownloadSummary {
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog(fmt.Sprintf("Media download: %d successful, %d failed", ev.N, ev.M), 96)
				})
			}
		}
	case acquisition.StepReport:
		c := NewReportClassifier()
		return func(line string) {
			ev, ok := c.Classify(line)
			if !ok {
				return
			}
			switch ev.Kind {
			case EventReportCleanup:
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog("Cleaning up temporary files...", 98)
				})
			case EventReportComplete:
				o.store.Mutate(id, func(j *acquisition.Job) {
					j.AppendLog("Report assembled successfully", 99)
				})
			}
		}
	default:
		return func(string) {}
	}
}

// fetchProgress maps a processed-activity count into the 55..90 band.
func fetchProgress(n int) int {
	p := 55 + n*35/fetchNominalBatch
	if p > 90 {
		p = 90
	}
	return p
}

// fetchNominalBatch is the activity count treated as a full extraction for
// progress purposes. Larger runs pin at 90 until the step finishes.
const fetchNominalBatch = 50

// SubmitOtp records a verification code for the auth subprocess to pick up
// through the internal input endpoint.
func (o *Orchestrator) SubmitOtp(id uuid.UUID, code string) error {
	return o.store.Mutate(id, func(j *acquisition.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Otp = code
		j.ErrorKind = acquisition.ErrorNone
		if j.Challenge != nil {
			j.Challenge.Visible = false
			j.Challenge.OtpError = ""
		}
		j.Status = acquisition.StatusOtpSubmitted
		j.AppendLog(msgVerifyingCode, -1)
	})
}

// Confirm records approval of a push challenge.
func (o *Orchestrator) Confirm(id uuid.UUID) error {
	return o.store.Mutate(id, func(j *acquisition.Job) {
		if j.Status.Terminal() {
			return
		}
		j.UserConfirmed = true
		j.AppendLog("Confirmation received. Continuing sign-in...", -1)
	})
}

// RequestCancel starts user-initiated cancellation. It returns once
// cancellation is underway; the two-phase kill completes asynchronously.
// Cancelling a job that already reached a terminal status is a no-op.
func (o *Orchestrator) RequestCancel(id uuid.UUID) error {
	snap, err := o.store.Get(id)
	if err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return nil
	}
	go o.Cancel(id, acquisition.ErrorCancelled, msgCancelled)
	return nil
}

// Cancel is the unified termination routine for user cancellation and
// non-recoverable failures. It signals live subprocesses with SIGTERM,
// escalates to SIGKILL after the grace period, and only then writes the
// terminal status. Concurrent calls collapse into one via the Cancelling
// flag; the first caller's kind and message win.
func (o *Orchestrator) Cancel(id uuid.UUID, kind acquisition.ErrorKind, message string) {
	first := false
	o.store.Mutate(id, func(j *acquisition.Job) {
		if j.Cancelling || j.Status.Terminal() {
			return
		}
		first = true
		j.Cancelling = true
		j.ErrorKind = kind
		j.Error = message
		j.AppendLog(message, -1)
	})
	if !first {
		return
	}

	log := o.logger.With("job_id", id, "kind", kind)
	log.Info("cancelling acquisition")

	o.signalRunning(id, syscall.SIGTERM)
	if !o.waitDrained(id, o.cfg.CancelGracePeriod) {
		log.Warn("grace period expired, escalating to SIGKILL")
		o.signalRunning(id, syscall.SIGKILL)
		// SIGKILL cannot be ignored; the bound here covers only pipe
		// drain and reaping.
		o.waitDrained(id, 10*time.Second)
	}

	status := acquisition.StatusError
	if kind == acquisition.ErrorCancelled || kind == acquisition.ErrorMaxRetries {
		status = acquisition.StatusCancelled
	}
	o.store.Mutate(id, func(j *acquisition.Job) {
		j.Status = status
		j.Cancelling = false
		if j.Challenge != nil {
			j.Challenge.Visible = false
		}
		j.Otp = ""
	})

	ctx := context.Background()
	if status == acquisition.StatusCancelled {
		o.cancelled.Add(ctx, 1)
	} else {
		o.failed.Add(ctx, 1)
	}
	log.Info("acquisition terminated", "status", status)
}

func (o *Orchestrator) signalRunning(id uuid.UUID, sig syscall.Signal) {
	var procs []*os.Process
	o.store.Mutate(id, func(j *acquisition.Job) {
		for _, cmd := range j.Running {
			if cmd.Process != nil {
				procs = append(procs, cmd.Process)
			}
		}
	})
	for _, p := range procs {
		// Signal errors mean the process already exited.
		p.Signal(sig)
	}
}

// waitDrained polls until the job has no live subprocess handles or the
// timeout elapses.
func (o *Orchestrator) waitDrained(id uuid.UUID, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		snap, err := o.store.Get(id)
		if err != nil || snap.RunningCount == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// PublishChallenge records challenge details reported by a step subprocess
// through the internal endpoint.
func (o *Orchestrator) PublishChallenge(id uuid.UUID, kind acquisition.ChallengeKind, prompt, detectedURL string) error {
	return o.store.Mutate(id, func(j *acquisition.Job) {
		if j.AuthCompleted || j.Status.Terminal() {
			return
		}
		c := j.EnsureChallenge(kind, o.cfg.OtpMaxRetries)
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

// ChallengeInput returns the pending user input for a step subprocess.
func (o *Orchestrator) ChallengeInput(id uuid.UUID) (otp string, confirmed bool, visible bool, otpError string, err error) {
	snap, err := o.store.Get(id)
	if err != nil {
		return "", false, false, "", err
	}
	visible = snap.Challenge != nil && snap.Challenge.Visible
	if snap.Challenge != nil {
		otpError = snap.Challenge.OtpError
	}
	return snap.Otp, snap.UserConfirmed, visible, otpError, nil
}

// ClearChallengeInput resets consumed user input so a stale code is never
// verified twice.
func (o *Orchestrator) ClearChallengeInput(id uuid.UUID) error {
	return o.store.Mutate(id, func(j *acquisition.Job) {
		j.Otp = ""
		j.UserConfirmed = false
	})
}

func (o *Orchestrator) terminalOrCancelling(id uuid.UUID) bool {
	snap, err := o.store.Get(id)
	if err != nil {
		return true
	}
	return snap.Status.Terminal() || snap.Cancelling
}
