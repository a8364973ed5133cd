package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	for _, key := range []string{"quay.url", "jira.url"} {
		if err := validateURL(viper.GetString(key)); err != nil {
			errors = append(errors, fmt.Sprintf("%s %v", key, err))
		}
	}

	if viper.GetString("quay.repository") == "" {
		errors = append(errors, "quay.repository must not be empty")
	}

	if viper.IsSet("timeout") {
		if timeout := timeoutValue("timeout"); timeout <= 0 {
			errors = append(errors, fmt.Sprintf("timeout must be positive, got: %v", timeout))
		}
	}

	switch strings.ToLower(viper.GetString("log.format")) {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("log.format must be text or json, got: %s", viper.GetString("log.format")))
	}

	if gw := viper.GetString("metrics.pushgateway"); gw != "" {
		if err := validateURL(gw); err != nil {
			errors = append(errors, fmt.Sprintf("metrics.pushgateway %v", err))
		}
	}

	if viper.GetBool("notifications.slack.enabled") {
		if hook := viper.GetString("notifications.slack.webhook_url"); hook != "" {
			if err := validateURL(hook); err != nil {
				errors = append(errors, fmt.Sprintf("notifications.slack.webhook_url %v", err))
			}
		} else if viper.GetString("notifications.slack.channel") == "" {
			errors = append(errors, "notifications.slack.channel must be set when slack is enabled without a webhook")
		}
	}

	// If there are any errors, return them
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host, got: %s", raw)
	}
	return nil
}
