package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackSender posts alerts to a Slack incoming webhook.
type SlackSender struct {
	http *http.Client
}

func NewSlackSender() *SlackSender {
	return &SlackSender{http: &http.Client{Timeout: 15 * time.Second}}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *SlackSender) PostAlert(ctx context.Context, webhookURL string, p Payload) error {
	if !strings.HasPrefix(webhookURL, "https://") && !strings.HasPrefix(webhookURL, "http://") {
		return fmt.Errorf("slack webhook url must be absolute")
	}

	summary := fmt.Sprintf("*%s*\n%s\n<%s|Open lead>", p.Title, p.Body, p.DashboardURL)
	if p.Priority != "" {
		summary = fmt.Sprintf("[%s] %s", strings.ToUpper(p.Priority), summary)
	}
	msg := slackMessage{
		Text: p.Title,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: summary}},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
