package main

import (
	"fmt"
	"os"

	"quay2jira/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit
var cfgFile string

// rootCmd files Jira issues for the vulnerabilities of one Quay image.
var rootCmd = &cobra.Command{
	Use:   "quay2jira IMAGE_NAME JIRA_PROJECT",
	Short: "Create vulnerability Jiras from Quay.io scanning results",
	Long: `quay2jira reads the Quay.io security scan of an image tag and files one Jira
issue per vulnerability whose CVEs are not yet covered by an issue labelled
"Security" in the project. Re-running is safe: already reported CVEs are
re-derived from the summaries of the existing issues.

Environment variables:
  QUAY_IO_SESSION          - Quay.io session cookie grabbed from the browser
  QUAY2JIRA_JIRA_USERNAME  - Jira username (NOT email), default current user
  QUAY2JIRA_JIRA_PASSWORD  - Jira password, prompted for when unset
  SLACK_BOT_USER_TOKEN     - enables Slack run notifications`,
	Args:          cobra.ExactArgs(2),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runReport,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	rootCmd.Flags().StringP("jira-username", "u", "", "Jira username (NOT email), default current user")
	rootCmd.Flags().String("tag", "latest", "Image tag to report on")
	rootCmd.Flags().String("repository", "cloudservices", "Quay repository (namespace) of the image")
	rootCmd.Flags().Bool("dry-run", false, "Print the issues that would be created without creating them")
	rootCmd.Flags().String("pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("jira.username", rootCmd.Flags().Lookup("jira-username"))
	viper.BindPFlag("quay.tag", rootCmd.Flags().Lookup("tag"))
	viper.BindPFlag("quay.repository", rootCmd.Flags().Lookup("repository"))
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("metrics.pushgateway", rootCmd.Flags().Lookup("pushgateway"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}

	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}
