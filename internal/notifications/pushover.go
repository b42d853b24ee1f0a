// internal/notifications/pushover.go - Pushover channel
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/config"
)

const (
	PushoverAPIURL = "https://api.pushover.net/1/messages.json"
	UserAgent      = "Raven URL Monitor/3.0"
)

// PushoverMessage represents a message sent to Pushover API
type PushoverMessage struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	Expire    int    `json:"expire,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Device    string `json:"device,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PushoverResponse represents the API response
type PushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

type PushoverService struct {
	config     config.PushoverConfig
	httpClient *http.Client
	apiURL     string
	now        func() time.Time
}

func NewPushoverService(cfg config.PushoverConfig, httpClient *http.Client) *PushoverService {
	return &PushoverService{
		config:     cfg,
		httpClient: httpClient,
		apiURL:     PushoverAPIURL,
		now:        time.Now,
	}
}

func (ps *PushoverService) Name() string { return "pushover" }

func (ps *PushoverService) Kinds() []string { return ps.config.Kinds }

// Send delivers msg unless quiet hours are in effect.
func (ps *PushoverService) Send(ctx context.Context, msg Message) error {
	if ps.inQuietHours() {
		logrus.WithField("monitor", msg.Event.MonitorID).Debug("Pushover notification suppressed by quiet hours")
		return nil
	}

	message := &PushoverMessage{
		Token:     ps.config.APIToken,
		User:      ps.config.UserKey,
		Title:     msg.Title,
		Message:   statusEmoji(msg.Event) + " " + msg.Text,
		URL:       msg.Event.URL,
		Priority:  ps.config.Priority,
		Sound:     ps.config.Sound,
		Device:    ps.config.Device,
		Timestamp: msg.Event.ProbedAt.Unix(),
	}
	if ps.config.Priority == 2 {
		message.Retry = ps.config.Retry
		message.Expire = ps.config.Expire
	}
	return ps.sendToPushover(ctx, message)
}

func (ps *PushoverService) inQuietHours() bool {
	q := ps.config.QuietHours
	if q == nil || !q.Enabled {
		return false
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hour := ps.now().In(loc).Hour()
	if q.StartHour <= q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	// Window wraps past midnight.
	return hour >= q.StartHour || hour < q.EndHour
}

func (ps *PushoverService) sendToPushover(ctx context.Context, message *PushoverMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ps.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var pushoverResp PushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushoverResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if pushoverResp.Status != 1 {
		return fmt.Errorf("pushover API error: %v", pushoverResp.Errors)
	}

	logrus.WithFields(logrus.Fields{
		"title":    message.Title,
		"priority": message.Priority,
	}).Info("Pushover notification sent successfully")
	return nil
}
