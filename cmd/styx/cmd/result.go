package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resultOutput string

var resultCmd = &cobra.Command{
	Use:   "result [job_id]",
	Short: "Fetch the report of a completed acquisition",
	Long: `Download the final report for a completed acquisition. Without --output
the report content is written to stdout.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))
		result, err := client.Result(args[0])
		if err != nil {
			cmd.Printf("Failed to fetch result: %v\n", err)
			return
		}

		if resultOutput == "" {
			cmd.Print(result.Content)
			return
		}

		if err := os.WriteFile(resultOutput, []byte(result.Content), 0o644); err != nil {
			cmd.Printf("Failed to write report: %v\n", err)
			return
		}
		cmd.Printf("Report written to %s (%d bytes, sha256 %s)\n", resultOutput, result.Size, result.SHA256)
	},
}

var artifactsJobID string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List stored acquisition artifacts",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))
		artifacts, err := client.ListArtifacts(artifactsJobID)
		if err != nil {
			cmd.Printf("Failed to list artifacts: %v\n", err)
			return
		}
		if len(artifacts) == 0 {
			cmd.Println("No artifacts stored.")
			return
		}

		for _, a := range artifacts {
			cmd.Printf("%s  %-12s  %8d bytes  %s  job=%s\n",
				a.CreatedAt.Format("2006-01-02 15:04"), a.Name, a.Size, a.ID, a.JobID)
		}
	},
}

func init() {
	resultCmd.Flags().StringVarP(&resultOutput, "output", "o", "", "Write the report to a file")
	artifactsCmd.Flags().StringVar(&artifactsJobID, "job", "", "Filter artifacts to one job")

	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(artifactsCmd)
}
