// internal/monitoring/cycle.go
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ravenwatch/internal/database"
)

// Stage is how far a monitor got through a cycle.
type Stage string

const (
	StageSelected  Stage = "selected"
	StageProbed    Stage = "probed"
	StageEvaluated Stage = "evaluated"
	StageRecorded  Stage = "recorded"
	StageEmitted   Stage = "emitted"
	StageDone      Stage = "done"
)

type MonitorResult struct {
	MonitorID         string   `json:"monitor_id"`
	Stage             Stage    `json:"stage"`
	Responded         bool     `json:"responded"`
	Healthy           bool     `json:"healthy"`
	Diagnostics       []string `json:"diagnostics"`
	RecordID          string   `json:"record_id,omitempty"`
	EmissionErrors    int      `json:"emission_errors"`
	PersistenceFailed bool     `json:"persistence_failed"`
	Cancelled         bool     `json:"cancelled,omitempty"`
	Error             string   `json:"error,omitempty"`
}

type CycleReport struct {
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	BatchSize         int             `json:"batch_size"`
	Selected          int             `json:"selected"`
	Healthy           int             `json:"healthy"`
	Unhealthy         int             `json:"unhealthy"`
	TransportErrors   int             `json:"transport_errors"`
	PersistenceErrors int             `json:"persistence_errors"`
	EmissionErrors    int             `json:"emission_errors"`
	Failed            int             `json:"failed"`
	Cancelled         int             `json:"cancelled"`
	Results           []MonitorResult `json:"results"`
	Error             string          `json:"error,omitempty"`
}

// RunCycle probes one due set. Errors are confined to the monitor they
// occur in; the report describes what happened to each.
func (e *Engine) RunCycle(ctx context.Context, batch int) CycleReport {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	report := CycleReport{StartedAt: time.Now(), BatchSize: batch}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordCycle(report.FinishedAt.Sub(report.StartedAt))
		}
	}()

	candidates, err := e.store.ListDueCandidates(ctx)
	if e.metrics != nil {
		e.metrics.RecordDatabaseOperation("list_due_candidates", err)
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to list monitors for cycle")
		report.Error = err.Error()
		report.FinishedAt = time.Now()
		return report
	}

	due := e.claimDue(e.recorder.Overlay(candidates), batch)
	ids := make([]string, len(due))
	for i, m := range due {
		ids[i] = m.ID
	}
	defer e.release(ids...)

	report.Selected = len(due)
	report.Results = make([]MonitorResult, len(due))

	workers := e.config.Monitoring.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, m := range due {
		i, m := i, m
		g.Go(func() error {
			report.Results[i] = e.runMonitor(ctx, m, report.StartedAt)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		switch {
		case r.Cancelled:
			report.Cancelled++
			continue
		case r.Stage == StageSelected || r.Stage == StageProbed:
			report.Failed++
			continue
		case r.Healthy:
			report.Healthy++
		default:
			report.Unhealthy++
		}
		if !r.Responded {
			report.TransportErrors++
		}
		if r.PersistenceFailed {
			report.PersistenceErrors++
		}
		if r.Stage != StageDone && !r.PersistenceFailed {
			report.Failed++
		}
		report.EmissionErrors += r.EmissionErrors
	}
	report.FinishedAt = time.Now()

	logrus.WithFields(logrus.Fields{
		"selected":           report.Selected,
		"healthy":            report.Healthy,
		"unhealthy":          report.Unhealthy,
		"transport_errors":   report.TransportErrors,
		"persistence_errors": report.PersistenceErrors,
		"cancelled":          report.Cancelled,
		"duration":           report.FinishedAt.Sub(report.StartedAt),
	}).Info("Cycle completed")

	return report
}

// runMonitor takes one monitor from Selected to Done. A panic anywhere in
// the pipeline ends this monitor's run at the stage it reached.
func (e *Engine) runMonitor(ctx context.Context, m database.Monitor, probedAt time.Time) (res MonitorResult) {
	res = MonitorResult{MonitorID: m.ID, Stage: StageSelected}
	log := logrus.WithFields(logrus.Fields{"monitor": m.ID, "url": m.URL})

	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic at stage %s: %v", res.Stage, r)
			log.WithField("stack", string(debug.Stack())).Error(res.Error)
		}
	}()

	outcome := e.executor.Probe(ctx, m.URL)
	if !outcome.Responded() && ctx.Err() != nil {
		// Our own cancellation says nothing about the target.
		res.Cancelled = true
		res.Error = fmt.Sprintf("check cancelled: %v", ctx.Err())
		log.Debug("Check cancelled before a response arrived")
		return res
	}
	res.Stage = StageProbed
	res.Responded = outcome.Responded()

	verdict := Evaluate(m, outcome)
	res.Stage = StageEvaluated
	res.Healthy = verdict.Healthy
	res.Diagnostics = verdict.Diagnostics

	if e.metrics != nil {
		var d time.Duration
		if outcome.Duration != nil {
			d = *outcome.Duration
		}
		e.metrics.RecordProbe(m.ID, probeResult(outcome, verdict), d, verdict.Healthy)
	}

	rec, err := e.recorder.Record(ctx, m, outcome, verdict, probedAt)
	res.RecordID = rec.ID
	if e.metrics != nil {
		e.metrics.RecordDatabaseOperation("record_probe", err)
	}
	if err != nil {
		res.PersistenceFailed = true
		res.Error = err.Error()
		var pe *PersistenceError
		if errors.As(err, &pe) {
			log = log.WithField("op", pe.Op)
		}
		log.WithError(err).Error("Failed to record probe")
		return res
	}
	res.Stage = StageRecorded

	emitted := e.emitter.Emit(ctx, m, rec, verdict)
	res.EmissionErrors = emitted.Failures
	res.Stage = StageEmitted

	entry := log.WithFields(logrus.Fields{
		"healthy":       verdict.Healthy,
		"response_code": rec.ResponseCode.String,
	})
	if verdict.Healthy {
		entry.Debug("Monitor checked")
	} else {
		entry.WithField("diagnostics", verdict.Diagnostics).Warn("Monitor unhealthy")
	}

	res.Stage = StageDone
	return res
}

func probeResult(o Outcome, v Verdict) string {
	switch {
	case !o.Responded():
		return "transport_error"
	case v.Healthy:
		return "healthy"
	default:
		return "unhealthy"
	}
}
