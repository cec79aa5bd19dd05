// CLAUDE:SUMMARY Read-only HTTP status of a running sweep: /healthz, /status summary, /status/clients outcomes and /status/heartbeat, served with chi.
// Package statusz exposes the run log over HTTP. Handlers only read log
// snapshots; they never touch the browser.
package statusz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/aprexport/runlog"
	"github.com/hazyhaar/aprexport/treatment"
)

// Source is what the endpoints report on. *runlog.Log implements it.
type Source interface {
	Summary() runlog.Summary
	Outcomes() []treatment.ClientVisitOutcome
}

// Heartbeats reads the last heartbeat of a run. *runlog.Store implements it.
type Heartbeats interface {
	LatestHeartbeat(ctx context.Context, runID string, staleness time.Duration) (*runlog.HeartbeatStatus, error)
}

// Option configures the Router.
type Option func(*options)

type options struct {
	beats     Heartbeats
	staleness time.Duration
}

// WithHeartbeat serves /status/heartbeat from beats. A beat older than
// staleness reports the run as not alive.
func WithHeartbeat(beats Heartbeats, staleness time.Duration) Option {
	return func(o *options) {
		o.beats = beats
		o.staleness = staleness
	}
}

// Router returns the status routes for src.
func Router(src Source, opts ...Option) http.Handler {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Summary())
	})
	r.Get("/status/clients", func(w http.ResponseWriter, _ *http.Request) {
		outcomes := src.Outcomes()
		if outcomes == nil {
			outcomes = []treatment.ClientVisitOutcome{}
		}
		writeJSON(w, http.StatusOK, outcomes)
	})
	if o.beats != nil {
		r.Get("/status/heartbeat", func(w http.ResponseWriter, req *http.Request) {
			runID := src.Summary().RunID
			hs, err := o.beats.LatestHeartbeat(req.Context(), runID, o.staleness)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if hs == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no heartbeat yet", "run_id": runID})
				return
			}
			writeJSON(w, http.StatusOK, hs)
		})
	}
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("statusz: listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("statusz: shutdown", "error", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
