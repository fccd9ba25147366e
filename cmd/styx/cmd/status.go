package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SherwinAllen/styx/pkg/api"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of an acquisition",
	Long: `Retrieve the current snapshot of an acquisition job: status, pipeline
step, progress, recent log lines, and any pending authentication challenge.
With --watch the command polls until the job reaches a terminal state and
prompts for challenge responses interactively.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))

		if statusWatch {
			watchJob(cmd, client, args[0], cmd.InOrStdin())
			return
		}

		status, err := client.Status(args[0])
		if err != nil {
			cmd.Printf("Failed to get status: %v\n", err)
			return
		}
		printStatus(cmd, status)
	},
}

func printStatus(cmd *cobra.Command, s *api.AcquisitionStatusResponse) {
	icon := statusIcon(s.Status)
	cmd.Printf("%s %sAcquisition Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s        %s\n", colorDim, colorReset, s.JobID)
	cmd.Printf("%sStatus:%s    %s\n", colorDim, colorReset, colorizeStatus(s.Status))
	if s.Step != "" {
		cmd.Printf("%sStep:%s      %s\n", colorDim, colorReset, s.Step)
	}
	cmd.Printf("%sProgress:%s  %s\n", colorDim, colorReset, progressBar(s.Progress))

	if s.Error != "" {
		cmd.Printf("%sError:%s     %s%s%s\n", colorDim, colorReset, colorRed, s.Error, colorReset)
	}
	if s.ArtifactID != "" {
		cmd.Printf("%sReport:%s    %s\n", colorDim, colorReset, s.ArtifactID)
	}

	if c := s.Challenge; c != nil {
		cmd.Println()
		cmd.Printf("%s! Challenge pending:%s %s\n", colorYellow, colorReset, c.Kind)
		if c.Prompt != "" {
			cmd.Printf("  %s\n", c.Prompt)
		}
		if c.OtpError != "" {
			cmd.Printf("  %s%s%s\n", colorRed, c.OtpError, colorReset)
		}
		if c.Kind == "otp" {
			cmd.Printf("  Respond with: styx otp %s <code>\n", s.JobID)
		} else {
			cmd.Printf("  Approve on your device, then: styx confirm %s\n", s.JobID)
		}
	}

	if len(s.Log) > 0 {
		cmd.Println()
		cmd.Printf("%sRecent activity:%s\n", colorDim, colorReset)
		start := len(s.Log) - 5
		if start < 0 {
			start = 0
		}
		for _, e := range s.Log[start:] {
			cmd.Printf("  %s  %s\n", e.Timestamp.Format("15:04:05"), e.Message)
		}
	}
}

// watchJob polls a job until it finishes, printing new log lines and
// prompting on stdin when a challenge appears.
func watchJob(cmd *cobra.Command, client *AcquisitionClient, jobID string, input io.Reader) {
	seen := 0
	prompted := false
	reader := bufio.NewReader(input)

	for {
		status, err := client.Status(jobID)
		if err != nil {
			cmd.Printf("Failed to get status: %v\n", err)
			return
		}

		for _, e := range status.Log[seen:] {
			cmd.Printf("[%3d%%] %s\n", status.Progress, e.Message)
		}
		seen = len(status.Log)

		if c := status.Challenge; c != nil && !prompted {
			switch c.Kind {
			case "otp":
				if c.OtpError != "" {
					cmd.Printf("%s%s%s\n", colorRed, c.OtpError, colorReset)
				}
				cmd.Print("Enter verification code: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					cmd.Printf("\nFailed to read code: %v\n", err)
					return
				}
				code := strings.TrimSpace(line)
				if code != "" {
					if err := client.SubmitOtp(jobID, code); err != nil {
						cmd.Printf("Failed to submit code: %v\n", err)
					}
				}
			case "push":
				cmd.Println("Approve the sign-in notification on your device...")
				prompted = true
			}
		}
		if status.Challenge == nil {
			prompted = false
		}

		switch status.Status {
		case "completed":
			cmd.Printf("%s✓ Acquisition completed.%s Fetch the report with: styx result %s\n", colorGreen, colorReset, jobID)
			return
		case "error", "cancelled":
			cmd.Printf("%s✗ Acquisition %s.%s\n", colorRed, status.Status, colorReset)
			if status.Error != "" {
				cmd.Printf("  %s\n", status.Error)
			}
			return
		}

		time.Sleep(2 * time.Second)
	}
}

func progressBar(p int) string {
	const width = 20
	filled := p * width / 100
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		p)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed":
		return colorGreen + "✓" + colorReset
	case "error", "cancelled":
		return colorRed + "✗" + colorReset
	case "running", "otp_submitted":
		return colorYellow + "⏳" + colorReset
	case "waiting_for_challenge":
		return colorYellow + "!" + colorReset
	case "started":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "completed":
		return icon + " " + colorGreen + status + colorReset
	case "error", "cancelled":
		return icon + " " + colorRed + status + colorReset
	case "running", "waiting_for_challenge", "otp_submitted":
		return icon + " " + colorYellow + status + colorReset
	case "started":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Poll until the job finishes")

	rootCmd.AddCommand(statusCmd)
}
