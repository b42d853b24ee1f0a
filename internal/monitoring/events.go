// internal/monitoring/events.go
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/database"
	"ravenwatch/internal/metrics"
)

type EventKind string

const (
	EventChecked EventKind = "checked"
	EventProblem EventKind = "problem"
)

// DefaultPublishTimeout bounds each delivery to a single sink.
const DefaultPublishTimeout = 10 * time.Second

// OutcomeSummary is the part of a probe record carried by events.
type OutcomeSummary struct {
	Responded       bool    `json:"responded"`
	ResponseCode    string  `json:"response_code,omitempty"`
	ResponseMessage string  `json:"response_message,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	ContentLength   int64   `json:"content_length"`
	ContentType     string  `json:"content_type,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Event is a notification about a completed probe.
type Event struct {
	Kind        EventKind      `json:"kind"`
	MonitorID   string         `json:"monitor_id"`
	MonitorName string         `json:"monitor_name"`
	URL         string         `json:"url"`
	RecordID    string         `json:"record_id"`
	ProbedAt    time.Time      `json:"probed_at"`
	Healthy     bool           `json:"healthy"`
	Diagnostics []string       `json:"diagnostics"`
	Outcome     OutcomeSummary `json:"outcome"`
}

// EventSink receives events. Publish should honor ctx.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

// EmitResult tallies one Emit call.
type EmitResult struct {
	Events   []Event
	Failures int
}

// Emitter fans events out to its sinks. Delivery failures are logged and
// counted but never returned to the caller.
type Emitter struct {
	mu      sync.RWMutex
	sinks   []EventSink
	timeout time.Duration
	metrics *metrics.Collector
}

func NewEmitter(collector *metrics.Collector, sinks ...EventSink) *Emitter {
	return &Emitter{
		sinks:   sinks,
		timeout: DefaultPublishTimeout,
		metrics: collector,
	}
}

// Subscribe registers another sink.
func (e *Emitter) Subscribe(s EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// SetTimeout changes the per-sink publish timeout.
func (e *Emitter) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// EventsFor builds the events a probe produces: "checked" always, then
// "problem" for an unhealthy verdict.
func EventsFor(m database.Monitor, rec *database.ProbeRecord, v Verdict) []Event {
	base := Event{
		Kind:        EventChecked,
		MonitorID:   m.ID,
		MonitorName: m.Name,
		URL:         m.URL,
		RecordID:    rec.ID,
		ProbedAt:    rec.ProbedAt,
		Healthy:     v.Healthy,
		Diagnostics: append([]string(nil), v.Diagnostics...),
		Outcome: OutcomeSummary{
			Responded:       rec.ResponseCode.Valid,
			ResponseCode:    rec.ResponseCode.String,
			ResponseMessage: rec.ResponseMessage.String,
			DurationSeconds: rec.DurationSeconds.Float64,
			ContentLength:   rec.ContentLength,
			ContentType:     rec.ContentType.String,
			Error:           rec.Error.String,
		},
	}

	events := []Event{base}
	if !v.Healthy {
		problem := base
		problem.Kind = EventProblem
		events = append(events, problem)
	}
	return events
}

func (e *Emitter) Emit(ctx context.Context, m database.Monitor, rec *database.ProbeRecord, v Verdict) EmitResult {
	e.mu.RLock()
	sinks := make([]EventSink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.RUnlock()

	result := EmitResult{Events: EventsFor(m, rec, v)}
	for _, ev := range result.Events {
		if e.metrics != nil {
			e.metrics.RecordEvent(string(ev.Kind))
		}
		for _, sink := range sinks {
			if err := e.publish(ctx, sink, ev); err != nil {
				result.Failures++
				if e.metrics != nil {
					e.metrics.RecordSinkFailure(sink.Name())
				}
				logrus.WithFields(logrus.Fields{
					"sink":    sink.Name(),
					"kind":    ev.Kind,
					"monitor": m.ID,
				}).WithError(err).Warn("Failed to publish event")
			}
		}
	}
	return result
}

func (e *Emitter) publish(ctx context.Context, sink EventSink, ev Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Publish(ctx, ev)
}
