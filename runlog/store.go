package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/aprexport/dbopen"
	"github.com/hazyhaar/aprexport/treatment"
)

// Schema creates the run store tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    letter      TEXT NOT NULL,
    start_index INTEGER NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    error       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS run_heartbeats (
    run_id          TEXT PRIMARY KEY REFERENCES runs(id),
    hostname        TEXT NOT NULL,
    pid             INTEGER NOT NULL,
    beat_at         INTEGER NOT NULL,
    clients         INTEGER NOT NULL,
    last_index      INTEGER NOT NULL,
    goroutines      INTEGER NOT NULL,
    memory_alloc_mb REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS client_outcomes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id            TEXT NOT NULL REFERENCES runs(id),
    letter            TEXT NOT NULL,
    list_name         TEXT NOT NULL,
    client_index      INTEGER NOT NULL,
    page              INTEGER NOT NULL,
    position          INTEGER NOT NULL,
    processed         INTEGER NOT NULL,
    modal_appeared    INTEGER NOT NULL,
    client_name       TEXT NOT NULL,
    client_id         TEXT NOT NULL,
    folder_key        TEXT NOT NULL,
    records_visited   INTEGER NOT NULL,
    records_processed INTEGER NOT NULL,
    folders           TEXT NOT NULL DEFAULT '[]',
    recorded_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_letter ON client_outcomes(letter, processed, list_name);
CREATE TABLE IF NOT EXISTS exports (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    outcome_id   INTEGER NOT NULL REFERENCES client_outcomes(id),
    position     INTEGER NOT NULL,
    entry_name   TEXT NOT NULL,
    record_title TEXT NOT NULL,
    target_path  TEXT NOT NULL,
    succeeded    INTEGER NOT NULL,
    recovered    INTEGER NOT NULL,
    state        TEXT NOT NULL,
    failed_at    TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    pages        INTEGER NOT NULL DEFAULT 0
);
`

// Store persists runs and their outcomes in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ Sink = (*Store)(nil)

// OpenStore opens (creating if needed) the store at path.
func OpenStore(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("runlog: open store: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps a database that already carries Schema.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// StartRun registers a run.
func (s *Store) StartRun(ctx context.Context, runID, letter string, start int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, letter, start_index, started_at) VALUES (?, ?, ?, ?)`,
		runID, letter, start, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("runlog: start run: %w", err)
	}
	return nil
}

// FinishRun stamps the end of a run and the error that ended it, if any.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		s.now().UnixMilli(), msg, runID)
	if err != nil {
		return fmt.Errorf("runlog: finish run: %w", err)
	}
	return nil
}

// Record stores one outcome with its exports in a single transaction.
func (s *Store) Record(ctx context.Context, runID string, o treatment.ClientVisitOutcome) error {
	folders, err := json.Marshal(nonNil(o.TreatmentFolders))
	if err != nil {
		return fmt.Errorf("runlog: folders: %w", err)
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO client_outcomes
			(run_id, letter, list_name, client_index, page, position, processed, modal_appeared,
			 client_name, client_id, folder_key, records_visited, records_processed, folders, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, o.Letter, o.ListName, o.Index, o.Page, o.PositionOnPage, o.Processed, o.ModalAppeared,
			o.Client.DisplayName, o.Client.ExternalID, o.Client.FolderKey,
			o.RecordsVisited, o.RecordsProcessed, string(folders), s.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("runlog: insert outcome: %w", err)
		}
		outcomeID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("runlog: outcome id: %w", err)
		}
		for _, r := range o.Exports {
			_, err := tx.ExecContext(ctx, `INSERT INTO exports
				(outcome_id, position, entry_name, record_title, target_path, succeeded, recovered,
				 state, failed_at, reason, pages)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				outcomeID, r.Entry.Position, r.Entry.DisplayName, r.RecordTitle, r.TargetPath,
				r.Succeeded, r.RecoveredViaFallback, r.State.String(), failedAt(r), r.Reason, r.Pages)
			if err != nil {
				return fmt.Errorf("runlog: insert export: %w", err)
			}
		}
		return nil
	})
}

// ProcessedNames returns the list names of clients of letter whose records
// earlier runs went through. Clients that could not be opened, or whose
// records tab failed, are left out so a resumed run retries them.
func (s *Store) ProcessedNames(ctx context.Context, letter string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT list_name FROM client_outcomes WHERE letter = ? AND processed = 1 AND records_processed = 1 ORDER BY list_name`,
		letter)
	if err != nil {
		return nil, fmt.Errorf("runlog: processed names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("runlog: scan name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// LastIndex returns the highest client index recorded for letter, 0 when
// none.
func (s *Store) LastIndex(ctx context.Context, letter string) (int, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(client_index) FROM client_outcomes WHERE letter = ?`, letter).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("runlog: last index: %w", err)
	}
	return int(last.Int64), nil
}

func failedAt(r treatment.ExportRecord) string {
	if r.Succeeded {
		return ""
	}
	return r.FailedAt.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
