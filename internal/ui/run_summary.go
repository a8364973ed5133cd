package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FiledIssue is one issue listed in the run summary.
type FiledIssue struct {
	Key     string
	Summary string
	URL     string
}

// RunSummary is the outcome of one scan-and-report run.
type RunSummary struct {
	Image          string
	Tag            string
	Project        string
	Records        int
	SkippedNoCVE   int
	SkippedTracked int
	Filed          []FiledIssue
	DryRun         bool
	Err            error
}

// RenderRunSummary formats s as a bordered panel.
func RenderRunSummary(s RunSummary) string {
	title := fmt.Sprintf("%s:%s → %s", s.Image, s.Tag, s.Project)
	if s.DryRun {
		title += " " + dryRunStyle.Render("(dry run)")
	}

	rows := []string{
		headerStyle.Render(title),
		"",
		row("Vulnerabilities", fmt.Sprint(s.Records)),
		row("Issues filed", createdStyle.Render(fmt.Sprint(len(s.Filed)))),
		row("Already reported", skippedStyle.Render(fmt.Sprint(s.SkippedTracked))),
		row("Without CVEs", skippedStyle.Render(fmt.Sprint(s.SkippedNoCVE))),
	}

	if len(s.Filed) > 0 {
		rows = append(rows, "")
		for _, issue := range s.Filed {
			line := fmt.Sprintf("%s %s", createdStyle.Render(issue.Key), issue.Summary)
			if issue.URL != "" {
				line += "\n    " + skippedStyle.Render(issue.URL)
			}
			rows = append(rows, line)
		}
	}

	if s.Err != nil {
		rows = append(rows, "", errorStyle.Render("Run aborted: ")+s.Err.Error())
	}

	return paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// PlainRunSummary is the one-line form used for chat notifications.
func PlainRunSummary(s RunSummary) string {
	var sb strings.Builder
	prefix := ""
	if s.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(&sb, "%squay2jira %s:%s → %s: %d issue(s) filed, %d already reported, %d without CVEs",
		prefix, s.Image, s.Tag, s.Project, len(s.Filed), s.SkippedTracked, s.SkippedNoCVE)
	for _, issue := range s.Filed {
		sb.WriteString("\n• ")
		if issue.URL != "" {
			fmt.Fprintf(&sb, "<%s|%s> ", issue.URL, issue.Key)
		} else {
			sb.WriteString(issue.Key + " ")
		}
		sb.WriteString(issue.Summary)
	}
	if s.Err != nil {
		fmt.Fprintf(&sb, "\nRun aborted: %v", s.Err)
	}
	return sb.String()
}
