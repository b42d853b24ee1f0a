// internal/monitoring/engine.go
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/config"
	"ravenwatch/internal/database"
	"ravenwatch/internal/metrics"
)

var (
	ErrMonitorBusy = errors.New("monitor is already being probed")
	ErrNoURL       = errors.New("monitor has no url")
)

// Store is what the engine needs from persistence: scheduling, recording
// and upserting monitors declared in config.
type Store interface {
	MonitorSource
	HistoryWriter
	CreateMonitor(ctx context.Context, monitor *database.Monitor) error
	UpdateMonitor(ctx context.Context, monitor *database.Monitor) error
}

type Engine struct {
	config   *config.Config
	store    Store
	metrics  *metrics.Collector
	executor Executor
	recorder *Recorder
	emitter  *Emitter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	cycleActive atomic.Bool
	skipped     atomic.Int64

	flightMu sync.Mutex
	inFlight map[string]struct{}
}

func NewEngine(cfg *config.Config, store Store, metricsCollector *metrics.Collector, sinks ...EventSink) (*Engine, error) {
	prober, err := NewProberFromConfig(cfg.Probe)
	if err != nil {
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		metrics:  metricsCollector,
		executor: prober,
		recorder: NewRecorder(store, store),
		emitter:  NewEmitter(metricsCollector, sinks...),
		inFlight: make(map[string]struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"sinks":   len(sinks),
		"workers": cfg.Monitoring.Workers,
		"batch":   cfg.Monitoring.BatchSize,
	}).Info("Monitoring engine initialized")

	return engine, nil
}

// Emitter exposes the event fan-out so sinks can be added after construction.
func (e *Engine) Emitter() *Emitter {
	return e.emitter
}

// SkippedTicks is the number of timer ticks dropped because a cycle was running.
func (e *Engine) SkippedTicks() int64 {
	return e.skipped.Load()
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	logrus.Info("Starting monitoring engine")

	if err := e.syncConfig(ctx); err != nil {
		logrus.WithError(err).Error("Failed to sync config")
		e.Stop()
		return err
	}

	if e.config.Database.HistoryRetention > 0 {
		if rs, ok := e.store.(database.RetentionStore); ok {
			NewRetentionManager(rs, e.config.Database.HistoryRetention).
				SchedulePeriodicPurge(ctx, e.config.Database.CleanupInterval)
		} else {
			logrus.Warn("History backend does not support retention; keeping all records")
		}
	}

	e.wg.Add(1)
	go e.loop(ctx)
	return nil
}

// Stop cancels the timer and waits for a running cycle to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	logrus.Info("Stopping monitoring engine")
	e.cancel()
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	if e.config.Monitoring.RunOnStart {
		e.tick(ctx)
	}

	ticker := time.NewTicker(e.config.Monitoring.Interval)
	defer ticker.Stop()

	logrus.WithField("interval", e.config.Monitoring.Interval).Info("Cycle timer started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick starts a cycle unless one is still running, in which case the tick
// is dropped.
func (e *Engine) tick(ctx context.Context) {
	if !e.cycleActive.CompareAndSwap(false, true) {
		e.skipped.Add(1)
		if e.metrics != nil {
			e.metrics.RecordSkippedCycle()
		}
		logrus.Warn("Previous cycle still running, skipping tick")
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.cycleActive.Store(false)
		e.RunCycle(ctx, e.config.Monitoring.BatchSize)
	}()
}

// CheckNow probes a single monitor outside the timer.
func (e *Engine) CheckNow(ctx context.Context, id string) (MonitorResult, error) {
	m, err := e.store.GetMonitor(ctx, id)
	if err != nil {
		return MonitorResult{}, err
	}
	if m.URL == "" {
		return MonitorResult{}, ErrNoURL
	}
	if !e.claim(m.ID) {
		return MonitorResult{}, ErrMonitorBusy
	}
	defer e.release(m.ID)

	res := e.runMonitor(ctx, *m, time.Now())
	if res.Cancelled {
		return res, ctx.Err()
	}
	return res, nil
}

// RefreshConfig re-applies the monitors declared in config to the store.
func (e *Engine) RefreshConfig(ctx context.Context) error {
	logrus.Info("Refreshing configuration")
	return e.syncConfig(ctx)
}

// syncConfig upserts configured monitors. Only definition fields are
// written, so derived state survives a restart.
func (e *Engine) syncConfig(ctx context.Context) error {
	var failed int
	for _, mc := range e.config.Monitors {
		monitor := &database.Monitor{
			ID:                 mc.ID,
			Name:               mc.Name,
			URL:                mc.URL,
			ExpectedStatusCode: mc.ExpectedStatusCode,
			ExpectedLocation:   mc.ExpectedLocation,
			RequiredSubstring:  mc.RequiredSubstring,
		}

		_, err := e.store.GetMonitor(ctx, monitor.ID)
		switch {
		case errors.Is(err, database.ErrMonitorNotFound):
			if err := e.store.CreateMonitor(ctx, monitor); err != nil {
				logrus.WithError(err).WithField("monitor", monitor.ID).Error("Failed to create monitor")
				failed++
				continue
			}
			logrus.WithField("monitor", monitor.ID).Info("Created monitor")
		case err != nil:
			logrus.WithError(err).WithField("monitor", monitor.ID).Error("Failed to load monitor")
			failed++
		default:
			if err := e.store.UpdateMonitor(ctx, monitor); err != nil {
				logrus.WithError(err).WithField("monitor", monitor.ID).Error("Failed to update monitor")
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to sync %d of %d monitors", failed, len(e.config.Monitors))
	}
	return nil
}

func (e *Engine) claim(id string) bool {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Engine) release(ids ...string) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	for _, id := range ids {
		delete(e.inFlight, id)
	}
}

// claimDue selects the due set among monitors not currently in flight and
// marks it in flight in the same critical section.
func (e *Engine) claimDue(candidates []database.Monitor, batch int) []database.Monitor {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()

	free := make([]database.Monitor, 0, len(candidates))
	for _, m := range candidates {
		if _, busy := e.inFlight[m.ID]; !busy {
			free = append(free, m)
		}
	}

	due := SelectDue(free, batch)
	for _, m := range due {
		e.inFlight[m.ID] = struct{}{}
	}
	return due
}
