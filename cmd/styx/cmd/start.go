package cmd

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SherwinAllen/styx/pkg/api"
)

var (
	startEmail         string
	startPassword      string
	startPasswordStdin bool
	startSource        string
	startWatch         bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new data acquisition",
	Long: `Launch an acquisition pipeline for the given account. The daemon
authenticates, extracts activity records, and assembles a report. With
--watch the command follows the job until it finishes and prompts for
verification codes as challenges appear.`,
	Run: func(cmd *cobra.Command, args []string) {
		if startEmail == "" {
			cmd.Println("Email is required. Use --email.")
			return
		}

		password := startPassword
		if startPasswordStdin {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if scanner.Scan() {
				password = strings.TrimSpace(scanner.Text())
			}
		}
		if password == "" {
			cmd.Println("Password is required. Use --password or --password-stdin.")
			return
		}

		client := NewAcquisitionClient(viper.GetString("url"))
		resp, err := client.Start(api.StartAcquisitionRequest{
			Email:    startEmail,
			Password: password,
			Source:   startSource,
		})
		if err != nil {
			cmd.Printf("Failed to start acquisition: %v\n", err)
			return
		}

		cmd.Printf("Acquisition started: %s\n", resp.JobID)
		if startWatch {
			watchJob(cmd, client, resp.JobID, os.Stdin)
		}
	},
}

func init() {
	startCmd.Flags().StringVar(&startEmail, "email", "", "Account email address")
	startCmd.Flags().StringVar(&startPassword, "password", "", "Account password")
	startCmd.Flags().BoolVar(&startPasswordStdin, "password-stdin", false, "Read the password from stdin")
	startCmd.Flags().StringVar(&startSource, "source", "", "Acquisition source hint")
	startCmd.Flags().BoolVar(&startWatch, "watch", false, "Follow the job until it finishes")

	rootCmd.AddCommand(startCmd)
}
