// internal/notifications/render.go - event to message rendering
package notifications

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"ravenwatch/internal/config"
	"ravenwatch/internal/monitoring"
)

// Message is a rendered notification.
type Message struct {
	Title string
	Text  string
	Event monitoring.Event
}

// Renderer turns events into messages using a title and a body template.
type Renderer struct {
	title *template.Template
	text  *template.Template
}

var defaultRenderer = mustRenderer(config.DefaultNotificationTitle, config.DefaultNotificationTemplate)

func NewRenderer(titleText, bodyText string) (*Renderer, error) {
	title, err := template.New("title").Parse(titleText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse title template: %w", err)
	}
	text, err := template.New("message").Parse(bodyText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message template: %w", err)
	}
	return &Renderer{title: title, text: text}, nil
}

func mustRenderer(titleText, bodyText string) *Renderer {
	r, err := NewRenderer(titleText, bodyText)
	if err != nil {
		panic(err)
	}
	return r
}

// Render formats e with the default templates.
func Render(e monitoring.Event) (Message, error) {
	return defaultRenderer.Render(e)
}

func (r *Renderer) Render(e monitoring.Event) (Message, error) {
	data := templateData(e)

	var title, text bytes.Buffer
	if err := r.title.Execute(&title, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute title template: %w", err)
	}
	if err := r.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute message template: %w", err)
	}

	return Message{
		Title: strings.TrimSpace(title.String()),
		Text:  strings.TrimSpace(text.String()),
		Event: e,
	}, nil
}

func templateData(e monitoring.Event) map[string]interface{} {
	name := e.MonitorName
	if name == "" {
		name = e.URL
	}
	code := e.Outcome.ResponseCode
	if !e.Outcome.Responded {
		code = "none"
	}
	return map[string]interface{}{
		"Kind":            string(e.Kind),
		"MonitorID":       e.MonitorID,
		"MonitorName":     name,
		"URL":             e.URL,
		"ResponseCode":    code,
		"ResponseMessage": e.Outcome.ResponseMessage,
		"Healthy":         e.Healthy,
		"Diagnostics":     strings.Join(e.Diagnostics, "; "),
		"Duration":        fmt.Sprintf("%.3fs", e.Outcome.DurationSeconds),
		"Error":           e.Outcome.Error,
		"Timestamp":       e.ProbedAt.Format("2006-01-02 15:04:05"),
		"StatusEmoji":     statusEmoji(e),
	}
}

func statusEmoji(e monitoring.Event) string {
	switch {
	case e.Healthy:
		return "✅"
	case !e.Outcome.Responded:
		return "❓"
	default:
		return "🚨"
	}
}
