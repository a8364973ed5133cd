package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apierrors "quay2jira/internal/errors"
)

const searchPageSize = 50

// Client talks to the Jira Server REST API v2.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// NewClient creates a new Jira client.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Authenticate verifies the credentials by calling the Current User endpoint.
func (c *Client) Authenticate(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/rest/api/2/myself", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierrors.FromResponse("Jira", "authenticate", resp)
	}
	return nil
}

type searchResponse struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string   `json:"summary"`
			Labels  []string `json:"labels"`
		} `json:"fields"`
	} `json:"issues"`
}

// SearchIssues returns every issue in project carrying label, following pagination.
func (c *Client) SearchIssues(ctx context.Context, project, label string) ([]Issue, error) {
	jql := fmt.Sprintf("project = %q AND labels = %q", project, label)

	var issues []Issue
	for startAt := 0; ; {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("fields", "summary,labels")
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(searchPageSize))

		page, err := c.searchPage(ctx, q)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Issues {
			issues = append(issues, Issue{
				Key:     raw.Key,
				Summary: raw.Fields.Summary,
				Labels:  raw.Fields.Labels,
			})
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return issues, nil
		}
	}
}

func (c *Client) searchPage(ctx context.Context, q url.Values) (*searchResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/rest/api/2/search", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.FromResponse("Jira", "search issues", resp)
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &page, nil
}

// CreateIssue files req and returns the created issue.
func (c *Client) CreateIssue(ctx context.Context, req IssueRequest) (Issue, error) {
	fields := map[string]interface{}{
		"project":     map[string]string{"key": req.Project},
		"summary":     req.Summary,
		"description": req.Description,
		"labels":      req.Labels,
	}
	if req.IssueType != "" {
		fields["issuetype"] = map[string]string{"name": req.IssueType}
	}
	if req.SecurityLevel != "" {
		fields["security"] = map[string]string{"name": req.SecurityLevel}
	}
	if len(req.Components) > 0 {
		components := make([]map[string]string, 0, len(req.Components))
		for _, name := range req.Components {
			components = append(components, map[string]string{"name": name})
		}
		fields["components"] = components
	}

	body, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return Issue{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", nil, body)
	if err != nil {
		return Issue{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Issue{}, apierrors.FromResponse("Jira", "create issue", resp)
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Issue{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return Issue{Key: result.Key, Summary: req.Summary, Labels: req.Labels}, nil
}

// BrowseURL returns the web link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", c.BaseURL, key)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}
