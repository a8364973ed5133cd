package jira

// Issue is the subset of a Jira issue the reporter needs.
type Issue struct {
	Key     string
	Summary string
	Labels  []string
}

// IssueRequest describes an issue to create.
type IssueRequest struct {
	Project       string
	Summary       string
	Description   string
	Components    []string
	IssueType     string
	SecurityLevel string
	Labels        []string
}
