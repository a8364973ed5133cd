// Package report files tracker issues for scanner vulnerabilities whose CVEs are
// not yet covered by an existing Security issue.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quay2jira/internal/cve"
	"quay2jira/internal/jira"
	"quay2jira/internal/metrics"
	"quay2jira/internal/vuln"
)

// Fixed attributes of every filed issue.
const (
	SecurityLabel = "Security"
	Component     = "Security"
	IssueType     = "Bug"
	SecurityLevel = "Red Hat Internal"
)

// Tracker is the issue tracker the reporter reads prior state from and files issues in.
type Tracker interface {
	SearchIssues(ctx context.Context, project, label string) ([]jira.Issue, error)
	CreateIssue(ctx context.Context, req jira.IssueRequest) (jira.Issue, error)
}

// Result summarises one Report call.
type Result struct {
	Records        int
	Created        []jira.Issue
	SkippedNoCVE   int
	SkippedTracked int
	DryRun         bool
}

// Reporter files one issue per vulnerability that carries untracked CVEs.
// A Reporter is not safe for concurrent use; each run owns its own instance.
type Reporter struct {
	tracker        Tracker
	project        string
	additionalText string
	dryRun         bool
	metrics        *metrics.Metrics
	logger         *slog.Logger

	// reported is the snapshot of CVEs covered by tracker issues when Load ran.
	// It is never modified afterwards.
	reported cve.Set
	// filed holds CVEs filed by this reporter since the snapshot.
	filed cve.Set

	dryRunSeq int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithAdditionalText appends text to the description of every filed issue.
func WithAdditionalText(text string) Option {
	return func(r *Reporter) { r.additionalText = text }
}

// WithDryRun builds issue requests without submitting them.
func WithDryRun(dryRun bool) Option {
	return func(r *Reporter) { r.dryRun = dryRun }
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) { r.metrics = m }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// New creates a reporter filing issues in project.
func New(tracker Tracker, project string, opts ...Option) *Reporter {
	r := &Reporter{
		tracker: tracker,
		project: project,
		logger:  slog.Default(),
		filed:   cve.NewSet(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load takes the snapshot of CVEs already covered by Security issues in the project.
// Only the first successful call queries the tracker.
func (r *Reporter) Load(ctx context.Context) error {
	if r.reported != nil {
		return nil
	}

	issues, err := r.tracker.SearchIssues(ctx, r.project, SecurityLabel)
	if err != nil {
		return fmt.Errorf("failed to load existing %s issues in %s: %w", SecurityLabel, r.project, err)
	}

	reported := cve.NewSet()
	for _, issue := range issues {
		reported.Union(cve.Extract(issue.Summary))
	}
	r.reported = reported

	r.logger.Debug("Loaded reported CVEs", "project", r.project, "issues", len(issues), "cves", reported.Len())
	return nil
}

// Reported returns the snapshot taken by Load, or nil before it ran.
func (r *Reporter) Reported() cve.Set {
	return r.reported
}

// Report walks it in order and files an issue for every vulnerability with CVEs
// that are neither in the snapshot nor filed earlier in this run. The first
// tracker or parse error stops the walk; the partial result is returned with it.
func (r *Reporter) Report(ctx context.Context, it vuln.Iterator) (*Result, error) {
	res := &Result{DryRun: r.dryRun}

	if err := r.Load(ctx); err != nil {
		return res, err
	}

	for it.Next() {
		v := it.Vulnerability()
		res.Records++
		r.inc(func(m *metrics.Metrics) { m.RecordsTotal.Inc() })

		if v.CVEs.Len() == 0 {
			r.logger.Info("Skipped vulnerability without CVEs", "package", v.PackageName, "advisory", v.AdvisoryID)
			res.SkippedNoCVE++
			r.inc(func(m *metrics.Metrics) { m.RecordsSkipped.WithLabelValues(metrics.ReasonNoCVE).Inc() })
			continue
		}

		issue, created, err := r.reportVulnerability(ctx, v)
		if err != nil {
			return res, err
		}
		if !created {
			res.SkippedTracked++
			r.inc(func(m *metrics.Metrics) { m.RecordsSkipped.WithLabelValues(metrics.ReasonAlreadyTracked).Inc() })
			continue
		}
		res.Created = append(res.Created, issue)
	}

	if err := it.Err(); err != nil {
		return res, fmt.Errorf("failed to read vulnerabilities: %w", err)
	}
	return res, nil
}

func (r *Reporter) reportVulnerability(ctx context.Context, v vuln.Vulnerability) (jira.Issue, bool, error) {
	log := r.logger.With("package", v.PackageName, "advisory", v.AdvisoryID)
	log.Info("Found vulnerability", "cves", v.CVEs.String())

	newCVEs := v.CVEs.Difference(r.reported, r.filed)
	if newCVEs.Len() == 0 {
		log.Info("Skipped vulnerability, already reported")
		return jira.Issue{}, false, nil
	}

	req := r.Request(v, newCVEs)
	log.Info("Reporting issue", "project", r.project, "new_cves", newCVEs.String(), "summary", req.Summary)

	var issue jira.Issue
	if r.dryRun {
		r.dryRunSeq++
		issue = jira.Issue{Key: fmt.Sprintf("DRY-RUN-%d", r.dryRunSeq), Summary: req.Summary, Labels: req.Labels}
	} else {
		var err error
		issue, err = r.tracker.CreateIssue(ctx, req)
		if err != nil {
			return jira.Issue{}, false, fmt.Errorf("failed to create issue for %s (%s): %w", v.PackageName, newCVEs, err)
		}
	}

	r.filed.Union(newCVEs)
	r.inc(func(m *metrics.Metrics) {
		m.IssuesCreated.Inc()
		m.CVEsReported.Add(float64(newCVEs.Len()))
	})

	log.Info("Reported issue", "key", issue.Key, "dry_run", r.dryRun)
	return issue, true, nil
}

// Request builds the issue filed for v covering newCVEs.
func (r *Reporter) Request(v vuln.Vulnerability, newCVEs cve.Set) jira.IssueRequest {
	return jira.IssueRequest{
		Project:       r.project,
		Summary:       Summary(v, newCVEs),
		Description:   r.Description(v, newCVEs),
		Components:    []string{Component},
		IssueType:     IssueType,
		SecurityLevel: SecurityLevel,
		Labels:        append([]string{SecurityLabel}, newCVEs.Sorted()...),
	}
}

// Summary is "<CVEs> <advisory> <severity> <package>". Future runs extract the
// reported CVEs from it, so the CVEs must stay in the summary.
func Summary(v vuln.Vulnerability, newCVEs cve.Set) string {
	parts := newCVEs.Sorted()
	parts = append(parts, v.AdvisoryID, v.Severity, v.PackageName)
	return strings.Join(parts, " ")
}

// Description renders the issue body in Jira wiki markup.
func (r *Reporter) Description(v vuln.Vulnerability, newCVEs cve.Set) string {
	parts := []string{
		"_As reported in Quay.io_",
		strings.Join([]string{"{code:none}", strings.TrimSpace(v.Description), "{code}"}, "\n"),
		"Erratum: " + v.AdvisoryLink,
		cveLinks(newCVEs),
	}
	if r.additionalText != "" {
		parts = append(parts, r.additionalText)
	}
	return strings.Join(parts, "\n\n")
}

func cveLinks(cves cve.Set) string {
	lines := []string{"CVE Links:"}
	for _, id := range cves.Sorted() {
		lines = append(lines, "* "+fmt.Sprintf(cve.LinkTemplate, id))
	}
	return strings.Join(lines, "\n")
}

func (r *Reporter) inc(fn func(*metrics.Metrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}
