package pipeline

import "github.com/SherwinAllen/styx/internal/acquisition"

// StepSpec describes one stage of the acquisition pipeline.
type StepSpec struct {
	Name   acquisition.Step
	Script string

	// BestEffort steps log a warning on failure instead of halting the run.
	BestEffort bool

	StartProgress int
	StartMessage  string
}

// DefaultSteps returns the standard pipeline in execution order. Script
// names are resolved against the configured scripts directory.
func DefaultSteps() []StepSpec {
	return []StepSpec{
		{
			Name:          acquisition.StepAuth,
			Script:        "authenticate.py",
			StartProgress: 10,
			StartMessage:  "Establishing secure connection...",
		},
		{
			Name:          acquisition.StepFetch,
			Script:        "fetch_activity.py",
			StartProgress: 55,
			StartMessage:  "Extracting activity records...",
		},
		{
			Name:          acquisition.StepSync,
			Script:        "sync_transcripts.py",
			StartProgress: 92,
			StartMessage:  "Organizing extracted data...",
		},
		{
			Name:          acquisition.StepDownload,
			Script:        "download_media.py",
			BestEffort:    true,
			StartProgress: 95,
			StartMessage:  "Downloading associated media files...",
		},
		{
			Name:          acquisition.StepReport,
			Script:        "build_report.py",
			StartProgress: 97,
			StartMessage:  "Generating final report...",
		},
		{
			Name:          acquisition.StepHash,
			Script:        "hash_report.py",
			BestEffort:    true,
			StartProgress: 99,
			StartMessage:  "Computing report integrity hash...",
		},
	}
}
