/*
monitor.go - Periodic cash status monitor

PURPOSE:
  Recomputes the cash status of every event on a fixed interval, publishes
  the actual balance as a Prometheus gauge and logs status changes. A
  critical position (negative actual balance) is logged at WARN on every
  check until it recovers.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: uses the same reconcile.CashStatus entry point as the API
  - Remembers the last status per event to log transitions once

USAGE:
  monitor := NewStatusMonitor(store, handler.Metrics)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: GetCashStatus endpoint (on-demand computation)
  - reconcile/cash.go: Status thresholds
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/reconcile"
	"github.com/warp/event-pricing/store/sqlite"
)

// StatusMonitor periodically classifies the cash position of all events.
type StatusMonitor struct {
	Store         *sqlite.Store
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.Mutex
	last   map[pricing.EventID]reconcile.StatusCode
}

// NewStatusMonitor creates a monitor checking every 15 minutes.
func NewStatusMonitor(store *sqlite.Store, metrics *Metrics) *StatusMonitor {
	return &StatusMonitor{
		Store:         store,
		Metrics:       metrics,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
		last:          make(map[pricing.EventID]reconcile.StatusCode),
	}
}

// Start begins the periodic checks.
func (m *StatusMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		slog.Info("status monitor disabled, not starting")
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.wg.Add(1)

	go m.run()

	slog.Info("status monitor started", "interval", m.CheckInterval)
}

// Stop stops the monitor and waits for a running check to finish.
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		slog.Info("status monitor stopped")
	}
}

func (m *StatusMonitor) run() {
	defer m.wg.Done()

	m.RunNow(context.Background())

	for {
		select {
		case <-m.ticker.C:
			m.RunNow(context.Background())
		case <-m.stop:
			return
		}
	}
}

// RunNow checks every event once and returns the computed statuses.
func (m *StatusMonitor) RunNow(ctx context.Context) map[pricing.EventID]reconcile.Status {
	events, err := m.Store.ListEvents(ctx)
	if err != nil {
		slog.Error("status monitor: failed to list events", "error", err)
		return nil
	}

	statuses := make(map[pricing.EventID]reconcile.Status, len(events))
	for _, e := range events {
		summary, err := reconcile.CashStatus(ctx, m.Store, e.ID)
		m.Metrics.observeComputation("monitor", err)
		if err != nil {
			slog.Error("status monitor: cash status failed", "event_id", e.ID, "error", err)
			continue
		}

		statuses[e.ID] = summary.Status
		balance, _ := summary.ActualBalance.Float64()
		m.Metrics.setActualBalance(string(e.ID), string(summary.Status.Code), balance)
		m.record(e, summary)
	}
	return statuses
}

func (m *StatusMonitor) record(e pricing.Event, s reconcile.Summary) {
	m.lastMu.Lock()
	prev, seen := m.last[e.ID]
	m.last[e.ID] = s.Status.Code
	m.lastMu.Unlock()

	if s.Status.Code == reconcile.StatusCritical {
		slog.Warn("cash position critical",
			"event_id", e.ID,
			"event", e.Name,
			"actual_balance", s.ActualBalance.StringFixed(2),
			"outstanding_participant_income", s.OutstandingParticipantIncome.StringFixed(2),
		)
		return
	}
	if seen && prev != s.Status.Code {
		slog.Info("cash status changed", "event_id", e.ID, "from", prev, "to", s.Status.Code)
	}
}
