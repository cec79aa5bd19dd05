// CLAUDE:SUMMARY Run-scoped ordered log of client outcomes: duplicate-name guard, snapshot for the status endpoint, summary counts, optional persistence sink.
// Package runlog holds the ordered outcome log of one run.
//
// Outcomes are appended once and never modified. The log is the only state
// shared with the status endpoint, so every access takes the mutex and
// readers get copies.
package runlog

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/aprexport/treatment"
)

// Sink persists outcomes as they are appended.
type Sink interface {
	Record(ctx context.Context, runID string, o treatment.ClientVisitOutcome) error
}

// Config configures a Log.
type Config struct {
	RunID  string
	Letter string
	Start  int
	// Sink is optional. Sink errors are logged and never fail the run.
	Sink   Sink
	Logger *slog.Logger
	Now    func() time.Time
}

// Log is the ordered, append-only outcome log of one run.
type Log struct {
	mu       sync.Mutex
	runID    string
	letter   string
	start    int
	started  time.Time
	outcomes []treatment.ClientVisitOutcome
	names    map[string]bool
	seeded   int
	sink     Sink
	logger   *slog.Logger
}

// New returns an empty Log.
func New(cfg Config) *Log {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Log{
		runID:   cfg.RunID,
		letter:  cfg.Letter,
		start:   cfg.Start,
		started: cfg.Now(),
		names:   make(map[string]bool),
		sink:    cfg.Sink,
		logger:  cfg.Logger,
	}
}

// RunID returns the identifier of the run.
func (l *Log) RunID() string { return l.runID }

// Seed marks names as already handled, so a resumed run skips them.
func (l *Log) Seed(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range names {
		if n != "" && !l.names[n] {
			l.names[n] = true
			l.seeded++
		}
	}
}

// Has reports whether an outcome for the list display name name was
// recorded in this run or seeded from an earlier one. Names are compared
// exactly.
func (l *Log) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.names[name]
}

// Append records o. The log keeps its own copy.
func (l *Log) Append(ctx context.Context, o treatment.ClientVisitOutcome) {
	o = clone(o)
	l.mu.Lock()
	l.outcomes = append(l.outcomes, o)
	l.names[o.ListName] = true
	l.mu.Unlock()

	if l.sink == nil {
		return
	}
	if err := l.sink.Record(context.WithoutCancel(ctx), l.runID, o); err != nil {
		l.logger.WarnContext(ctx, "runlog: outcome not persisted", "client", o.ListName, "index", o.Index, "error", err)
	}
}

// Outcomes returns a copy of the log in append order.
func (l *Log) Outcomes() []treatment.ClientVisitOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]treatment.ClientVisitOutcome, len(l.outcomes))
	for i, o := range l.outcomes {
		out[i] = clone(o)
	}
	return out
}

// Summary aggregates the log.
type Summary struct {
	RunID   string    `json:"run_id"`
	Letter  string    `json:"letter"`
	Start   int       `json:"start_index"`
	Started time.Time `json:"started_at"`
	Seeded  int       `json:"seeded"`

	Clients          int `json:"clients"`
	Processed        int `json:"processed"`
	RecordsVisited   int `json:"records_visited"`
	RecordsProcessed int `json:"records_processed"`
	Folders          int `json:"treatment_record_folders"`
	Documents        int `json:"documents"`
	Exported         int `json:"exported"`
	Recovered        int `json:"recovered_via_fallback"`
	Failed           int `json:"failed"`
	// LastIndex is the highest client index recorded, 0 when none.
	LastIndex int `json:"last_index"`

	ByLetter     map[string]int `json:"by_letter"`
	ModalClients []string       `json:"modal_clients"`
}

// Letters returns the keys of ByLetter in order.
func (s Summary) Letters() []string {
	out := make([]string, 0, len(s.ByLetter))
	for l := range s.ByLetter {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Summary returns the counts over the current log.
func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Summary{
		RunID:    l.runID,
		Letter:   l.letter,
		Start:    l.start,
		Started:  l.started,
		Seeded:   l.seeded,
		Clients:  len(l.outcomes),
		ByLetter: make(map[string]int),
	}
	for _, o := range l.outcomes {
		s.ByLetter[o.Letter]++
		s.LastIndex = max(s.LastIndex, o.Index)
		if o.Processed {
			s.Processed++
		}
		if o.ModalAppeared {
			s.ModalClients = append(s.ModalClients, o.ListName)
		}
		if o.RecordsVisited {
			s.RecordsVisited++
		}
		if o.RecordsProcessed {
			s.RecordsProcessed++
		}
		s.Folders += len(o.TreatmentFolders)
		for _, r := range o.Exports {
			s.Documents++
			switch {
			case r.Succeeded && r.RecoveredViaFallback:
				s.Exported++
				s.Recovered++
			case r.Succeeded:
				s.Exported++
			default:
				s.Failed++
			}
		}
	}
	return s
}

func clone(o treatment.ClientVisitOutcome) treatment.ClientVisitOutcome {
	o.TreatmentFolders = slices.Clone(o.TreatmentFolders)
	o.Exports = slices.Clone(o.Exports)
	return o
}
