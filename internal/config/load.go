package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key looked up in the environment.
const EnvPrefix = "QUAY2JIRA"

// Load initializes the configuration from file and environment variables.
// A missing default config file is not an error; a missing explicit one is.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/quay2jira")
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	// The unprefixed names are the ones users already export.
	if os.Getenv(EnvPrefix+"_QUAY_SESSION") == "" && os.Getenv("QUAY_IO_SESSION") != "" {
		viper.SetDefault("quay.session", os.Getenv("QUAY_IO_SESSION"))
	}
	if os.Getenv(EnvPrefix+"_JIRA_URL") == "" && os.Getenv("JIRA_URL") != "" {
		viper.SetDefault("jira.url", os.Getenv("JIRA_URL"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("quay.url", "https://quay.io/")
	viper.SetDefault("quay.repository", "cloudservices")
	viper.SetDefault("quay.tag", "latest")
	viper.SetDefault("jira.url", "https://issues.redhat.com")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("verbose", false)
	viper.SetDefault("dry_run", false)
	viper.SetDefault("log.format", "text")
	viper.SetDefault("metrics.job", "quay2jira")

	slackEnabled := false
	if os.Getenv("SLACK_BOT_USER_TOKEN") != "" {
		slackEnabled = true
	}
	viper.SetDefault("notifications.slack.enabled", slackEnabled)
	viper.SetDefault("notifications.slack.channel", "#general")
}

// Config is a snapshot of the loaded settings.
type Config struct {
	QuayURL        string
	QuayRepository string
	QuayTag        string
	QuaySession    string

	JiraURL      string
	JiraUsername string
	JiraPassword string

	AdditionalText string
	DryRun         bool
	Timeout        time.Duration

	Verbose   bool
	LogFormat string
	LogFile   string

	Pushgateway string
	MetricsJob  string

	SlackEnabled    bool
	SlackToken      string
	SlackChannel    string
	SlackWebhookURL string
}

// Current reads the settings from viper.
func Current() Config {
	return Config{
		QuayURL:        viper.GetString("quay.url"),
		QuayRepository: viper.GetString("quay.repository"),
		QuayTag:        viper.GetString("quay.tag"),
		QuaySession:    viper.GetString("quay.session"),

		JiraURL:      viper.GetString("jira.url"),
		JiraUsername: viper.GetString("jira.username"),
		JiraPassword: viper.GetString("jira.password"),

		AdditionalText: viper.GetString("report.additional_text"),
		DryRun:         viper.GetBool("dry_run"),
		Timeout:        timeoutValue("timeout"),

		Verbose:   viper.GetBool("verbose"),
		LogFormat: viper.GetString("log.format"),
		LogFile:   viper.GetString("log.file"),

		Pushgateway: viper.GetString("metrics.pushgateway"),
		MetricsJob:  viper.GetString("metrics.job"),

		SlackEnabled:    viper.GetBool("notifications.slack.enabled"),
		SlackToken:      os.Getenv("SLACK_BOT_USER_TOKEN"),
		SlackChannel:    viper.GetString("notifications.slack.channel"),
		SlackWebhookURL: viper.GetString("notifications.slack.webhook_url"),
	}
}

// timeoutValue accepts a duration ("30s") or a number of seconds.
func timeoutValue(key string) time.Duration {
	if n, err := strconv.Atoi(viper.GetString(key)); err == nil {
		return time.Duration(n) * time.Second
	}
	return viper.GetDuration(key)
}
