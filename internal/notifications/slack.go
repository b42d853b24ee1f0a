// internal/notifications/slack.go - Slack incoming webhook channel
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/config"
)

type slackPayload struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
}

type SlackService struct {
	config     config.SlackConfig
	httpClient *http.Client
}

func NewSlackService(cfg config.SlackConfig, httpClient *http.Client) *SlackService {
	return &SlackService{config: cfg, httpClient: httpClient}
}

func (ss *SlackService) Name() string { return "slack" }

func (ss *SlackService) Kinds() []string { return ss.config.Kinds }

func (ss *SlackService) Send(ctx context.Context, msg Message) error {
	payload := slackPayload{
		Text:     slackText(msg),
		Channel:  ss.config.Channel,
		Username: ss.config.Username,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ss.config.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := ss.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	logrus.WithField("monitor", msg.Event.MonitorID).Debug("Slack notification sent")
	return nil
}

// slackText links the monitor name to its URL and lists any diagnostics.
func slackText(msg Message) string {
	var b strings.Builder
	b.WriteString(statusEmoji(msg.Event))
	b.WriteString(" ")
	text := msg.Text
	if name := msg.Event.MonitorName; name != "" && msg.Event.URL != "" {
		text = strings.Replace(text, name, "<"+msg.Event.URL+"|"+name+">", 1)
	}
	b.WriteString(text)
	for _, d := range msg.Event.Diagnostics {
		b.WriteString("\n• ")
		b.WriteString(d)
	}
	if e := msg.Event.Outcome.Error; e != "" && !strings.Contains(text, e) {
		b.WriteString("\n• ")
		b.WriteString(e)
	}
	return b.String()
}
