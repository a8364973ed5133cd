package vuln

import (
	"context"
	"fmt"

	"quay2jira/internal/cve"
)

// Fix is the version that resolves a vulnerability, or the absence of one.
type Fix struct {
	version string
}

// NoFix reports that the scanner knows of no fixed version.
func NoFix() Fix { return Fix{} }

// FixedIn reports that version resolves the vulnerability. An empty version means NoFix.
func FixedIn(version string) Fix { return Fix{version: version} }

func (f Fix) Available() bool { return f.version != "" }

func (f Fix) Version() string { return f.version }

func (f Fix) String() string {
	if !f.Available() {
		return "no fix available"
	}
	return f.version
}

// Vulnerability is one (package, vulnerability) pairing reported by the scanner.
type Vulnerability struct {
	PackageName      string
	InstalledVersion string
	FixedVersion     Fix
	AdvisoryLink     string
	AdvisoryID       string
	Severity         string // scanner vocabulary, not validated
	Description      string
	CVEs             cve.Set
}

// NewVulnerability builds a Vulnerability and derives its CVEs from the description.
func NewVulnerability(pkg, installed string, fixed Fix, link, advisory, severity, description string) Vulnerability {
	return Vulnerability{
		PackageName:      pkg,
		InstalledVersion: installed,
		FixedVersion:     fixed,
		AdvisoryLink:     link,
		AdvisoryID:       advisory,
		Severity:         severity,
		Description:      description,
		CVEs:             cve.Extract(description),
	}
}

func (v Vulnerability) String() string {
	return fmt.Sprintf("Vulnerability(%s, cves=[%s])", v.PackageName, v.CVEs)
}

// Feature is one installed package in a Quay security scan layer.
// Pointer fields distinguish a missing key from an empty value.
type Feature struct {
	Name            *string                `json:"Name"`
	Version         *string                `json:"Version"`
	Vulnerabilities []FeatureVulnerability `json:"Vulnerabilities,omitempty"`
}

// FeatureVulnerability is a vulnerability entry embedded in a Feature.
type FeatureVulnerability struct {
	FixedBy     *string `json:"FixedBy"`
	Link        *string `json:"Link"`
	Name        *string `json:"Name"`
	Description *string `json:"Description"`
	Severity    *string `json:"Severity"`
}

// Iterator yields vulnerabilities one at a time.
type Iterator interface {
	Next() bool
	Vulnerability() Vulnerability
	Err() error
}

// ScanSource supplies the raw features of one scan.
type ScanSource interface {
	FetchFeatures(ctx context.Context) ([]Feature, error)
}
