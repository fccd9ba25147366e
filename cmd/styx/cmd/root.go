package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "styx",
	Short: "Styx drives forensic data acquisitions against a styx daemon",
	Long: `styx is the command-line client for the Styx evidence acquisition service.

The daemon runs acquisitions as multi-step pipelines: authenticate against the
account, extract activity records, organize them, download associated media,
and assemble a final report. Authentication may pause for a one-time code or a
push confirmation; the CLI submits those on your behalf.

Common workflows:

  Start an acquisition and follow it:
    styx start --email user@example.com --password-stdin --watch

  Check on a running job:
    styx status <job-id>

  Answer a verification code challenge:
    styx otp <job-id> 123456

  Approve a push challenge:
    styx confirm <job-id>

  Cancel a running job:
    styx cancel <job-id>

  Fetch the finished report:
    styx result <job-id> --output report.html

Configuration:
  Set the daemon endpoint via flag, environment variable, or config file:
    STYX_URL    Daemon endpoint (default: http://localhost:5000)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".styx"
		viper.AddConfigPath(home)
		viper.SetConfigName(".styx")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "STYX_VARNAME"
	viper.SetEnvPrefix("STYX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.styx.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:5000", "Styx daemon URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
