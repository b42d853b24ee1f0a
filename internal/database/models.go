// internal/database/models.go
package database

import (
	"time"

	"github.com/guregu/null/v5"
)

// DefaultExpectedStatusCode applies when a monitor leaves expected_status_code unset.
const DefaultExpectedStatusCode = "200"

// Monitor is a URL health check definition plus the state derived from its
// most recent probe. Definition fields are owned by whoever edits monitors;
// LastState and LastCheckedAt are only written through UpdateLastState.
type Monitor struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	URL                string     `json:"url"`
	ExpectedStatusCode string     `json:"expected_status_code"`
	ExpectedLocation   string     `json:"expected_location"`
	RequiredSubstring  string     `json:"required_substring"`
	LastCheckedAt      *time.Time `json:"last_checked_at"`
	LastState          *LastState `json:"last_state"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// EffectiveStatusCode returns the expected status code, falling back to "200".
func (m Monitor) EffectiveStatusCode() string {
	if m.ExpectedStatusCode == "" {
		return DefaultExpectedStatusCode
	}
	return m.ExpectedStatusCode
}

// LastState mirrors the most recent probe of a monitor.
type LastState struct {
	DurationSeconds null.Float  `json:"duration_seconds"`
	ResponseCode    null.String `json:"response_code"`
	ResponseMessage null.String `json:"response_message"`
	ContentLength   int64       `json:"content_length"`
	ContentType     null.String `json:"content_type"`
	Healthy         bool        `json:"healthy"`
	Diagnostics     []string    `json:"diagnostics"`
	Error           null.String `json:"error"`
}

// ProbeRecord is one immutable history entry. A probe that never got a
// response still produces a record with null response fields.
type ProbeRecord struct {
	ID              string      `json:"id"`
	MonitorID       string      `json:"monitor_id"`
	ProbedAt        time.Time   `json:"probed_at"`
	CompletedAt     time.Time   `json:"completed_at"`
	DurationSeconds null.Float  `json:"duration_seconds"`
	ResponseCode    null.String `json:"response_code"`
	ResponseMessage null.String `json:"response_message"`
	ResponseBody    string      `json:"response_body"`
	BodyTruncated   bool        `json:"body_truncated"`
	ContentLength   int64       `json:"content_length"`
	ContentType     null.String `json:"content_type"`
	Healthy         bool        `json:"healthy"`
	Diagnostics     []string    `json:"diagnostics"`
	Error           null.String `json:"error"`
}

// State projects the record onto the monitor's last-state snapshot.
func (r *ProbeRecord) State() LastState {
	diags := make([]string, len(r.Diagnostics))
	copy(diags, r.Diagnostics)
	return LastState{
		DurationSeconds: r.DurationSeconds,
		ResponseCode:    r.ResponseCode,
		ResponseMessage: r.ResponseMessage,
		ContentLength:   r.ContentLength,
		ContentType:     r.ContentType,
		Healthy:         r.Healthy,
		Diagnostics:     diags,
		Error:           r.Error,
	}
}

type HistoryFilters struct {
	MonitorID string
	Since     *time.Time
	Limit     int
}

// DatabaseStats provides information about store size and contents.
type DatabaseStats struct {
	TotalMonitors     int       `json:"total_monitors"`
	TotalProbeRecords int       `json:"total_probe_records"`
	DatabaseSize      int64     `json:"database_size_bytes"`
	OldestProbeRecord time.Time `json:"oldest_probe_record"`
	NewestProbeRecord time.Time `json:"newest_probe_record"`
	HistoryBackend    string    `json:"history_backend"`
}
