package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Heartbeat periodically stamps a run as alive in the store, with its
// progress and the process memory. A long sweep that stops beating has hung.
type Heartbeat struct {
	store    *Store
	log      *Log
	interval time.Duration
	hostname string
	pid      int
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// Heartbeat returns a writer for the run of log. Recommended interval: 15s.
func (s *Store) Heartbeat(log *Log, interval time.Duration) *Heartbeat {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Heartbeat{
		store:    s,
		log:      log,
		interval: interval,
		hostname: hostname,
		pid:      os.Getpid(),
		logger:   log.logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start writes one beat immediately, then one per interval until Stop or
// ctx is done.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.loop(ctx)
}

// Stop ends the loop and waits for it.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
}

// Beat writes a single heartbeat.
func (h *Heartbeat) Beat(ctx context.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	sum := h.log.Summary()
	_, err := h.store.db.ExecContext(ctx, `
		INSERT INTO run_heartbeats (run_id, hostname, pid, beat_at, clients, last_index, goroutines, memory_alloc_mb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			beat_at = excluded.beat_at, clients = excluded.clients, last_index = excluded.last_index,
			goroutines = excluded.goroutines, memory_alloc_mb = excluded.memory_alloc_mb`,
		h.log.RunID(), h.hostname, h.pid, h.store.now().Unix(), sum.Clients, sum.LastIndex,
		runtime.NumGoroutine(), float64(mem.Alloc)/1024/1024)
	if err != nil {
		return fmt.Errorf("runlog: heartbeat: %w", err)
	}
	return nil
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.Beat(ctx); err != nil {
		h.logger.Error("runlog: heartbeat write failed", "error", err, "run_id", h.log.RunID())
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if err := h.Beat(ctx); err != nil {
				h.logger.Error("runlog: heartbeat write failed", "error", err, "run_id", h.log.RunID())
			}
		}
	}
}

// HeartbeatStatus is the latest beat of a run.
type HeartbeatStatus struct {
	RunID      string        `json:"run_id"`
	Hostname   string        `json:"hostname"`
	PID        int           `json:"pid"`
	At         time.Time     `json:"at"`
	Clients    int           `json:"clients"`
	LastIndex  int           `json:"last_index"`
	Goroutines int           `json:"goroutines"`
	AllocMB    float64       `json:"memory_alloc_mb"`
	Alive      bool          `json:"alive"`
	StaleFor   time.Duration `json:"stale_for,omitempty"`
}

// LatestHeartbeat returns the last beat of runID. A beat older than
// staleness marks the run as not alive. Nil, nil when the run never beat.
func (s *Store) LatestHeartbeat(ctx context.Context, runID string, staleness time.Duration) (*HeartbeatStatus, error) {
	var (
		hs HeartbeatStatus
		at int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, hostname, pid, beat_at, clients, last_index, goroutines, memory_alloc_mb
		FROM run_heartbeats WHERE run_id = ?`, runID).
		Scan(&hs.RunID, &hs.Hostname, &hs.PID, &at, &hs.Clients, &hs.LastIndex, &hs.Goroutines, &hs.AllocMB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: latest heartbeat: %w", err)
	}
	hs.At = time.Unix(at, 0)
	if age := s.now().Sub(hs.At); age <= staleness {
		hs.Alive = true
	} else {
		hs.StaleFor = age - staleness
	}
	return &hs, nil
}
