package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackSenderPostsBlocks(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewSlackSender().PostAlert(context.Background(), srv.URL, testPayload())
	require.NoError(t, err)

	assert.Equal(t, "Hot lead: Jane", got.Text)
	require.Len(t, got.Blocks, 1)
	assert.Contains(t, got.Blocks[0].Text.Text, "[HIGH]")
	assert.Contains(t, got.Blocks[0].Text.Text, "https://app.example.com/leads/1")
}

func TestSlackSenderReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewSlackSender().PostAlert(context.Background(), srv.URL, testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSlackSenderRejectsRelativeURL(t *testing.T) {
	err := NewSlackSender().PostAlert(context.Background(), "hooks/x", testPayload())
	assert.Error(t, err)
}

func TestRenderAlertEmail(t *testing.T) {
	html, err := renderAlertEmail(testPayload())
	require.NoError(t, err)

	assert.Contains(t, html, "Hot lead: Jane")
	assert.Contains(t, html, "Priority: high")
	assert.Contains(t, html, `href="https://app.example.com/leads/1"`)
}
