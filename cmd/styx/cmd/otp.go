package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var otpCmd = &cobra.Command{
	Use:   "otp [job_id] [code]",
	Short: "Submit a verification code for a pending challenge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))
		if err := client.SubmitOtp(args[0], args[1]); err != nil {
			cmd.Printf("Failed to submit code: %v\n", err)
			return
		}
		cmd.Println("Code submitted. Poll the job to see whether it was accepted.")
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [job_id]",
	Short: "Acknowledge an approved push challenge",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))
		if err := client.Confirm(args[0]); err != nil {
			cmd.Printf("Failed to confirm: %v\n", err)
			return
		}
		cmd.Println("Confirmation sent.")
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a running acquisition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewAcquisitionClient(viper.GetString("url"))
		if err := client.Cancel(args[0]); err != nil {
			cmd.Printf("Failed to cancel: %v\n", err)
			return
		}
		cmd.Println("Cancellation requested. The job will stop shortly.")
	},
}

func init() {
	rootCmd.AddCommand(otpCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(cancelCmd)
}
