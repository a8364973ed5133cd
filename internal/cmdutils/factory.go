package cmdutils

import (
	"fmt"
	"net/http"

	"quay2jira/internal/config"
	"quay2jira/internal/jira"
	"quay2jira/internal/notify"
	"quay2jira/internal/quay"
)

// GetJiraClient initializes a Jira client from the loaded configuration and credentials.
func GetJiraClient(cfg config.Config, username, password string, hc *http.Client) (*jira.Client, error) {
	if cfg.JiraURL == "" {
		return nil, fmt.Errorf("JIRA_URL environment variable or jira.url config is required")
	}
	if username == "" {
		return nil, fmt.Errorf("jira username is required")
	}

	client := jira.NewClient(cfg.JiraURL, username, password)
	if hc != nil {
		client.HTTPClient = hc
	}
	return client, nil
}

// GetImageSource binds a Quay client to image at the configured tag.
func GetImageSource(cfg config.Config, image string, hc *http.Client) (*quay.ImageSource, error) {
	if image == "" {
		return nil, fmt.Errorf("image name is required")
	}

	opts := []quay.Option{quay.WithSession(cfg.QuaySession)}
	if hc != nil {
		opts = append(opts, quay.WithHTTPClient(hc))
	}
	client, err := quay.NewClient(cfg.QuayURL, cfg.QuayRepository, opts...)
	if err != nil {
		return nil, err
	}
	return quay.NewImageSource(client, image, cfg.QuayTag), nil
}

// GetNotifier picks the Slack destination: the webhook wins over the bot token.
// A disabled or unconfigured Slack yields a no-op notifier.
func GetNotifier(cfg config.Config) notify.Notifier {
	switch {
	case !cfg.SlackEnabled:
		return notify.Nop{}
	case cfg.SlackWebhookURL != "":
		return notify.NewWebhookNotifier(cfg.SlackWebhookURL)
	case cfg.SlackToken != "":
		return notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel)
	default:
		return notify.Nop{}
	}
}
