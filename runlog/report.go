package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hazyhaar/aprexport/treatment"
)

// CSVHeader is the column order of the summary CSV.
var CSVHeader = []string{
	"letter", "name", "processed", "modal_appeared", "client_name", "client_id",
	"folder_name", "electronic_records_visited", "electronic_records_processed",
	"treatment_record_folders", "index",
}

// CSVFileName is the default summary file name for a run finished at t.
func CSVFileName(t time.Time) string {
	return fmt.Sprintf("aestheticspro_processed_clients_%d.csv", t.Unix())
}

// WriteCSV writes outcomes as RFC 4180 rows under CSVHeader.
func WriteCSV(w io.Writer, outcomes []treatment.ClientVisitOutcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("runlog: csv header: %w", err)
	}
	for _, o := range outcomes {
		row := []string{
			o.Letter,
			o.ListName,
			strconv.FormatBool(o.Processed),
			strconv.FormatBool(o.ModalAppeared),
			o.Client.DisplayName,
			o.Client.ExternalID,
			o.Client.FolderKey,
			strconv.FormatBool(o.RecordsVisited),
			strconv.FormatBool(o.RecordsProcessed),
			strings.Join(o.TreatmentFolders, "; "),
			strconv.Itoa(o.Index),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("runlog: csv row %d: %w", o.Index, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("runlog: csv flush: %w", err)
	}
	return nil
}

// SaveCSV writes outcomes to path, or to CSVFileName(now) in the working
// directory when path is empty, and returns the path written.
func SaveCSV(path string, now time.Time, outcomes []treatment.ClientVisitOutcome) (string, error) {
	if path == "" {
		path = CSVFileName(now)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("runlog: csv dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("runlog: create csv: %w", err)
	}
	if err := WriteCSV(f, outcomes); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("runlog: close csv: %w", err)
	}
	return path, nil
}

// RenderSummary prints the run totals, the per-letter counts and the
// clients that showed a note modal as console tables.
func RenderSummary(w io.Writer, s Summary) {
	totals := table.NewWriter()
	totals.SetOutputMirror(w)
	totals.SetTitle("Run %s (letter %s from #%d)", s.RunID, s.Letter, s.Start)
	totals.AppendHeader(table.Row{"Metric", "Count"})
	totals.AppendRows([]table.Row{
		{"Clients visited", s.Clients},
		{"Clients processed", s.Processed},
		{"Records tab visited", s.RecordsVisited},
		{"Records processed", s.RecordsProcessed},
		{"Treatment record folders", s.Folders},
		{"Documents", s.Documents},
		{"Exported", s.Exported},
		{"Recovered via fallback", s.Recovered},
		{"Failed exports", s.Failed},
		{"Clients with modals", len(s.ModalClients)},
		{"Last index", s.LastIndex},
	})
	if s.Seeded > 0 {
		totals.AppendRow(table.Row{"Skipped from earlier runs", s.Seeded})
	}
	totals.SetStyle(table.StyleRounded)
	totals.Render()

	letters := table.NewWriter()
	letters.SetOutputMirror(w)
	letters.AppendHeader(table.Row{"Letter", "Clients"})
	for _, l := range s.Letters() {
		letters.AppendRow(table.Row{l, s.ByLetter[l]})
	}
	letters.SetStyle(table.StyleRounded)
	letters.Render()

	if len(s.ModalClients) == 0 {
		return
	}
	modals := table.NewWriter()
	modals.SetOutputMirror(w)
	modals.AppendHeader(table.Row{"Client with modal"})
	for _, n := range s.ModalClients {
		modals.AppendRow(table.Row{n})
	}
	modals.SetStyle(table.StyleRounded)
	modals.Render()
}
