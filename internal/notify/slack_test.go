package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Notify(t *testing.T) {
	receivedMessage := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var payload map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		receivedMessage, _ = payload["text"].(string)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	message := "Filed 2 issues in PROJ"

	require.NoError(t, notifier.Notify(context.Background(), message))
	assert.Equal(t, message, receivedMessage)
}

func TestWebhookNotifier_Notify_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL).Notify(context.Background(), "test")
	assert.Error(t, err)
}

func TestWebhookNotifier_Notify_MissingURL(t *testing.T) {
	err := NewWebhookNotifier("").Notify(context.Background(), "test")
	assert.Error(t, err)
}

type errorTransport struct{}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, errors.New("simulated network error")
}

func TestWebhookNotifier_Notify_ClientError(t *testing.T) {
	notifier := NewWebhookNotifier("http://invalid-url")
	notifier.Client = &http.Client{Transport: &errorTransport{}}

	err := notifier.Notify(context.Background(), "test")
	assert.ErrorContains(t, err, "simulated network error")
}

func TestSlackNotifier_Notify(t *testing.T) {
	var channel, text string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		channel = r.FormValue("channel")
		text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "channel": "C123", "ts": "1700000000.000100"}`))
	}))
	defer server.Close()

	notifier := NewSlackNotifier("xoxb-test", "#security", slack.OptionAPIURL(server.URL+"/"))
	require.NoError(t, notifier.Notify(context.Background(), "Filed PROJ-1"))
	assert.Equal(t, "#security", channel)
	assert.Equal(t, "Filed PROJ-1", text)
}

func TestSlackNotifier_Notify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer server.Close()

	notifier := NewSlackNotifier("xoxb-test", "", slack.OptionAPIURL(server.URL+"/"))
	err := notifier.Notify(context.Background(), "test")
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}
