// internal/monitoring/recorder.go
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"ravenwatch/internal/database"
)

// MonitorSource is the part of the monitor store the engine schedules from.
type MonitorSource interface {
	ListDueCandidates(ctx context.Context) ([]database.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*database.Monitor, error)
	UpdateLastState(ctx context.Context, id string, state database.LastState, checkedAt time.Time) error
}

// HistoryWriter appends probe records.
type HistoryWriter interface {
	InsertProbeRecord(ctx context.Context, record *database.ProbeRecord) error
}

// PersistenceError reports a recording step that did not reach the store.
type PersistenceError struct {
	Op        string
	MonitorID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s for monitor %s: %v", e.Op, e.MonitorID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Recorder writes one history record per probe and refreshes the monitor's
// last state. The time of every attempted write is also held in memory, so a
// monitor whose state could not be saved still moves to the back of the queue.
type Recorder struct {
	monitors MonitorSource
	history  HistoryWriter

	mu      sync.Mutex
	checked map[string]time.Time
}

func NewRecorder(monitors MonitorSource, history HistoryWriter) *Recorder {
	return &Recorder{
		monitors: monitors,
		history:  history,
		checked:  make(map[string]time.Time),
	}
}

// Record persists the probe. The returned record is non-nil even on error.
func (r *Recorder) Record(ctx context.Context, m database.Monitor, o Outcome, v Verdict, probedAt time.Time) (*database.ProbeRecord, error) {
	record := NewProbeRecord(m, o, v, probedAt)

	r.mu.Lock()
	if prev, ok := r.checked[m.ID]; !ok || probedAt.After(prev) {
		r.checked[m.ID] = probedAt
	}
	r.mu.Unlock()

	var errs []error
	if err := r.history.InsertProbeRecord(ctx, record); err != nil {
		errs = append(errs, &PersistenceError{Op: "insert probe record", MonitorID: m.ID, Err: err})
	}
	if err := r.monitors.UpdateLastState(ctx, m.ID, record.State(), probedAt); err != nil {
		errs = append(errs, &PersistenceError{Op: "update last state", MonitorID: m.ID, Err: err})
	}
	return record, errors.Join(errs...)
}

// Overlay raises each monitor's LastCheckedAt to the most recent time this
// recorder saw. monitors must be the full candidate list: entries the store
// has caught up with, and entries for monitors no longer listed, are dropped.
func (r *Recorder) Overlay(monitors []database.Monitor) []database.Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed := make(map[string]struct{}, len(monitors))
	for i := range monitors {
		listed[monitors[i].ID] = struct{}{}
	}
	for id := range r.checked {
		if _, ok := listed[id]; !ok {
			delete(r.checked, id)
		}
	}

	for i := range monitors {
		seen, ok := r.checked[monitors[i].ID]
		if !ok {
			continue
		}
		stored := monitors[i].LastCheckedAt
		if stored != nil && !stored.Before(seen) {
			delete(r.checked, monitors[i].ID)
			continue
		}
		t := seen
		monitors[i].LastCheckedAt = &t
	}
	return monitors
}

// LastChecked returns the in-memory check time for a monitor, if any.
func (r *Recorder) LastChecked(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.checked[id]
	return t, ok
}

// NewProbeRecord converts an outcome and verdict into a history record.
func NewProbeRecord(m database.Monitor, o Outcome, v Verdict, probedAt time.Time) *database.ProbeRecord {
	record := &database.ProbeRecord{
		ID:          uuid.New().String(),
		MonitorID:   m.ID,
		ProbedAt:    probedAt,
		CompletedAt: o.CompletedAt(),
		Healthy:     v.Healthy,
		Diagnostics: append([]string(nil), v.Diagnostics...),
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = probedAt
	}
	if o.Duration != nil {
		record.DurationSeconds = null.FloatFrom(o.Duration.Seconds())
	}

	if !o.Responded() {
		record.Error = null.StringFrom(o.Err.Error())
		return record
	}

	record.ResponseCode = null.StringFrom(o.StatusCodeString())
	record.ResponseMessage = null.StringFrom(o.StatusMessage)
	record.ResponseBody = o.Body
	record.BodyTruncated = o.BodyTruncated
	record.ContentLength = o.ContentLength
	record.ContentType = null.NewString(o.ContentType, o.ContentType != "")
	if o.BodyErr != nil {
		record.Error = null.StringFrom("reading body: " + o.BodyErr.Error())
	}
	return record
}
