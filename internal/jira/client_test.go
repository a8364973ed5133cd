package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	apierrors "quay2jira/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.URL+"/", "user", "secret")
	return client, server
}

// --- Tests ---

func TestClient_Authenticate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/api/2/myself", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "user", user)
			assert.Equal(t, "secret", pass)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		assert.NoError(t, client.Authenticate(context.Background()))
	})

	t.Run("failure", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		err := client.Authenticate(context.Background())
		require.Error(t, err)
		assert.True(t, apierrors.IsUnauthorized(err))
	})
}

func TestClient_SearchIssues(t *testing.T) {
	t.Run("paginates until total", func(t *testing.T) {
		var calls int
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, "/rest/api/2/search", r.URL.Path)
			assert.Equal(t, `project = "RHICOMPL" AND labels = "Security"`, r.URL.Query().Get("jql"))
			assert.Equal(t, strconv.Itoa(searchPageSize), r.URL.Query().Get("maxResults"))

			startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
			issues := []map[string]interface{}{}
			if startAt == 0 {
				issues = append(issues,
					map[string]interface{}{"key": "RHICOMPL-1", "fields": map[string]interface{}{"summary": "CVE-2021-1 RHSA-1 High libfoo"}},
					map[string]interface{}{"key": "RHICOMPL-2", "fields": map[string]interface{}{"summary": "CVE-2021-2 RHSA-2 Low libbar"}},
				)
			} else {
				assert.Equal(t, 2, startAt)
				issues = append(issues,
					map[string]interface{}{"key": "RHICOMPL-3", "fields": map[string]interface{}{"summary": "CVE-2021-3 RHSA-3 Low libbaz", "labels": []string{"Security"}}},
				)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"startAt": startAt,
				"total":   3,
				"issues":  issues,
			})
		}))
		defer server.Close()

		issues, err := client.SearchIssues(context.Background(), "RHICOMPL", "Security")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		require.Len(t, issues, 3)
		assert.Equal(t, "RHICOMPL-1", issues[0].Key)
		assert.Equal(t, "CVE-2021-3 RHSA-3 Low libbaz", issues[2].Summary)
		assert.Equal(t, []string{"Security"}, issues[2].Labels)
	})

	t.Run("empty result", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"total": 0, "issues": []interface{}{}})
		}))
		defer server.Close()

		issues, err := client.SearchIssues(context.Background(), "PROJ", "Security")
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("failure", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("The value 'NOPE' does not exist for the field 'project'."))
		}))
		defer server.Close()

		_, err := client.SearchIssues(context.Background(), "NOPE", "Security")
		var statusErr *apierrors.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
		assert.Contains(t, statusErr.Message, "does not exist")
	})
}

func TestClient_CreateIssue(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var payload struct {
				Fields struct {
					Project    map[string]string   `json:"project"`
					Summary    string              `json:"summary"`
					Components []map[string]string `json:"components"`
					IssueType  map[string]string   `json:"issuetype"`
					Security   map[string]string   `json:"security"`
					Labels     []string            `json:"labels"`
				} `json:"fields"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "PROJ", payload.Fields.Project["key"])
			assert.Equal(t, "CVE-2021-1 RHSA-1 High libfoo", payload.Fields.Summary)
			assert.Equal(t, []map[string]string{{"name": "Security"}}, payload.Fields.Components)
			assert.Equal(t, "Bug", payload.Fields.IssueType["name"])
			assert.Equal(t, "Red Hat Internal", payload.Fields.Security["name"])
			assert.Equal(t, []string{"Security", "CVE-2021-1"}, payload.Fields.Labels)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "10001", "key": "PROJ-7"})
		}))
		defer server.Close()

		issue, err := client.CreateIssue(context.Background(), IssueRequest{
			Project:       "PROJ",
			Summary:       "CVE-2021-1 RHSA-1 High libfoo",
			Description:   "desc",
			Components:    []string{"Security"},
			IssueType:     "Bug",
			SecurityLevel: "Red Hat Internal",
			Labels:        []string{"Security", "CVE-2021-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "PROJ-7", issue.Key)
		assert.Equal(t, "CVE-2021-1 RHSA-1 High libfoo", issue.Summary)
	})

	t.Run("failure", func(t *testing.T) {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := client.CreateIssue(context.Background(), IssueRequest{Project: "PROJ", Summary: "s"})
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		client, server := newTestClient(http.NotFoundHandler())
		server.Close()

		_, err := client.CreateIssue(context.Background(), IssueRequest{Project: "PROJ", Summary: "s"})
		assert.ErrorContains(t, err, "failed to execute request")
	})
}

func TestClient_BrowseURL(t *testing.T) {
	client := NewClient("https://issues.redhat.com/", "u", "p")
	assert.Equal(t, "https://issues.redhat.com/browse/PROJ-1", client.BrowseURL("PROJ-1"))
}
