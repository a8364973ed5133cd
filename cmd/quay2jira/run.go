package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"quay2jira/internal/cmdutils"
	"quay2jira/internal/config"
	"quay2jira/internal/metrics"
	"quay2jira/internal/report"
	"quay2jira/internal/telemetry"
	"quay2jira/internal/ui"
	"quay2jira/internal/vuln"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// errMissingSession is returned when no Quay.io session cookie is configured.
var errMissingSession = errors.New("missing QUAY_IO_SESSION: log in to quay.io, grab the \"session\" cookie from the browser and export it as QUAY_IO_SESSION")

// tracker is the part of the Jira client the command needs.
type tracker interface {
	report.Tracker
	Authenticate(ctx context.Context) error
	BrowseURL(key string) string
}

// scanSource is the part of the Quay image source the command needs.
type scanSource interface {
	vuln.ScanSource
	PageURL(ctx context.Context) (string, error)
}

var askOneFunc = survey.AskOne

var newTracker = func(cfg config.Config, username, password string, hc *http.Client) (tracker, error) {
	return cmdutils.GetJiraClient(cfg, username, password, hc)
}

var newScanSource = func(cfg config.Config, image string, hc *http.Client) (scanSource, error) {
	return cmdutils.GetImageSource(cfg, image, hc)
}

var newNotifier = cmdutils.GetNotifier

func runReport(cmd *cobra.Command, args []string) error {
	image, project := args[0], args[1]
	cfg := config.Current()

	closeLog, err := telemetry.InitLogger(telemetry.LoggerOptions{
		Debug:   cfg.Verbose,
		Format:  cfg.LogFormat,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	if cfg.QuaySession == "" {
		return errMissingSession
	}

	username, err := jiraUsername(cfg)
	if err != nil {
		return err
	}
	password, err := jiraPassword(cfg, username)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	start := time.Now()

	summary, runErr := execute(ctx, cfg, m, image, project, username, password)
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderRunSummary(summary))

	if len(summary.Filed) > 0 || runErr != nil {
		if err := newNotifier(cfg).Notify(ctx, ui.PlainRunSummary(summary)); err != nil {
			slog.Warn("Failed to send notification", "error", err)
		}
	}

	m.ObserveRun(start, runErr)
	if cfg.Pushgateway != "" {
		if err := m.Push(ctx, cfg.Pushgateway, cfg.MetricsJob, map[string]string{"image": image, "project": project}); err != nil {
			slog.Warn("Failed to push metrics", "pushgateway", cfg.Pushgateway, "error", err)
		}
	}

	return runErr
}

// execute runs one scan-and-report cycle. The returned summary is filled as far
// as the run got, also when an error is returned.
func execute(ctx context.Context, cfg config.Config, m *metrics.Metrics, image, project, username, password string) (ui.RunSummary, error) {
	summary := ui.RunSummary{
		Image:   image,
		Tag:     cfg.QuayTag,
		Project: project,
		DryRun:  cfg.DryRun,
	}

	tr, err := newTracker(cfg, username, password, m.InstrumentClient("jira", &http.Client{Timeout: cfg.Timeout}))
	if err != nil {
		summary.Err = err
		return summary, err
	}
	if err := tr.Authenticate(ctx); err != nil {
		err = fmt.Errorf("jira login failed: %w", err)
		summary.Err = err
		return summary, err
	}

	src, err := newScanSource(cfg, image, m.InstrumentClient("quay", &http.Client{Timeout: cfg.Timeout}))
	if err != nil {
		summary.Err = err
		return summary, err
	}

	slog.Info("Fetching security scan", "image", image, "tag", cfg.QuayTag, "repository", cfg.QuayRepository)
	features, err := src.FetchFeatures(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch security scan of %s:%s: %w", image, cfg.QuayTag, err)
		summary.Err = err
		return summary, err
	}
	pageURL, err := src.PageURL(ctx)
	if err != nil {
		summary.Err = err
		return summary, err
	}

	reporter := report.New(tr, project,
		report.WithAdditionalText(additionalText(pageURL, cfg.AdditionalText)),
		report.WithDryRun(cfg.DryRun),
		report.WithMetrics(m),
	)

	result, err := reporter.Report(ctx, vuln.NewParser(features))
	if result != nil {
		summary.Records = result.Records
		summary.SkippedNoCVE = result.SkippedNoCVE
		summary.SkippedTracked = result.SkippedTracked
		for _, issue := range result.Created {
			filed := ui.FiledIssue{Key: issue.Key, Summary: issue.Summary}
			if !result.DryRun {
				filed.URL = tr.BrowseURL(issue.Key)
			}
			summary.Filed = append(summary.Filed, filed)
		}
	}
	summary.Err = err
	return summary, err
}

// additionalText links the Quay page of the scan, followed by any configured text.
func additionalText(pageURL, extra string) string {
	parts := []string{"Quay:\n* " + pageURL}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, "\n\n")
}

func jiraUsername(cfg config.Config) (string, error) {
	if cfg.JiraUsername != "" {
		return cfg.JiraUsername, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("no Jira username given and the current user is unknown: %w", err)
	}
	return u.Username, nil
}

func jiraPassword(cfg config.Config, username string) (string, error) {
	if cfg.JiraPassword != "" {
		return cfg.JiraPassword, nil
	}
	var password string
	prompt := &survey.Password{
		Message: fmt.Sprintf("Jira password for %s:", username),
	}
	if err := askOneFunc(prompt, &password, survey.WithValidator(survey.Required)); err != nil {
		return "", fmt.Errorf("failed to read Jira password: %w", err)
	}
	return password, nil
}
