package runlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/aprexport/dbopen"
	"github.com/hazyhaar/aprexport/treatment"
)

func outcome(name string, index int) treatment.ClientVisitOutcome {
	return treatment.ClientVisitOutcome{
		Letter:           "B",
		ListName:         name,
		Index:            index,
		Page:             (index-1)/100 + 1,
		PositionOnPage:   (index-1)%100 + 1,
		Processed:        true,
		Client:           treatment.NewClientIdentity(name, "44"),
		RecordsVisited:   true,
		RecordsProcessed: true,
	}
}

func TestLog_DuplicateGuard(t *testing.T) {
	l := New(Config{RunID: "run_1", Letter: "B"})
	if l.Has("Baker, Ann") {
		t.Fatal("empty log reports a name")
	}
	l.Append(context.Background(), outcome("Baker, Ann", 1))
	if !l.Has("Baker, Ann") {
		t.Error("appended name not found")
	}
	if l.Has("baker, ann") {
		t.Error("names must compare exactly")
	}
	l.Seed("Brown, Bo", "")
	if !l.Has("Brown, Bo") || l.Has("") {
		t.Error("seed")
	}
}

func TestLog_OutcomesAreCopies(t *testing.T) {
	l := New(Config{})
	o := outcome("Baker, Ann", 1)
	o.TreatmentFolders = []string{"06/08/2023 HRT LABS"}
	l.Append(context.Background(), o)
	o.TreatmentFolders[0] = "mutated"

	got := l.Outcomes()
	if got[0].TreatmentFolders[0] != "06/08/2023 HRT LABS" {
		t.Fatalf("log shares memory with caller: %v", got[0].TreatmentFolders)
	}
	got[0].TreatmentFolders[0] = "again"
	if l.Outcomes()[0].TreatmentFolders[0] != "06/08/2023 HRT LABS" {
		t.Fatal("log shares memory with reader")
	}
}

func TestLog_Summary(t *testing.T) {
	l := New(Config{RunID: "run_1", Letter: "B", Start: 150})
	l.Seed("Old, One")
	a := outcome("Baker, Ann", 150)
	a.ModalAppeared = true
	a.TreatmentFolders = []string{"06/08/2023 HRT LABS"}
	a.Exports = []treatment.ExportRecord{
		{Succeeded: true},
		{Succeeded: true, RecoveredViaFallback: true},
		{State: treatment.StateFailed},
	}
	b := outcome("Brown, Bo", 151)
	b.Processed = false
	l.Append(context.Background(), a)
	l.Append(context.Background(), b)

	s := l.Summary()
	if s.Clients != 2 || s.Processed != 1 || s.Folders != 1 || s.Seeded != 1 {
		t.Errorf("counts: %+v", s)
	}
	if s.Documents != 3 || s.Exported != 2 || s.Recovered != 1 || s.Failed != 1 {
		t.Errorf("exports: %+v", s)
	}
	if s.LastIndex != 151 || s.ByLetter["B"] != 2 {
		t.Errorf("index/letters: %+v", s)
	}
	if len(s.ModalClients) != 1 || s.ModalClients[0] != "Baker, Ann" {
		t.Errorf("modal clients: %v", s.ModalClients)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Record(context.Context, string, treatment.ClientVisitOutcome) error {
	f.calls++
	return errors.New("disk full")
}

func TestLog_SinkErrorDoesNotLoseOutcome(t *testing.T) {
	sink := &failingSink{}
	l := New(Config{Sink: sink})
	l.Append(context.Background(), outcome("Baker, Ann", 1))
	if sink.calls != 1 || len(l.Outcomes()) != 1 {
		t.Fatalf("calls=%d outcomes=%d", sink.calls, len(l.Outcomes()))
	}
}

func TestWriteCSV(t *testing.T) {
	o := outcome("Baker, Ann", 150)
	o.TreatmentFolders = []string{"06/08/2023 HRT LABS", "01/02/2024 Botox"}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []treatment.ClientVisitOutcome{o}); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(CSVHeader, ",") {
		t.Errorf("header: %v", rows[0])
	}
	want := []string{"B", "Baker, Ann", "true", "false", "Baker, Ann", "44", "Baker, Ann - 44",
		"true", "true", "06/08/2023 HRT LABS; 01/02/2024 Botox", "150"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("column %s: got %q, want %q", CSVHeader[i], rows[1][i], want[i])
		}
	}
}

func TestSaveCSV_DefaultName(t *testing.T) {
	t.Chdir(t.TempDir())
	now := time.Unix(1700000000, 0)
	path, err := SaveCSV("", now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if path != "aestheticspro_processed_clients_1700000000.csv" {
		t.Errorf("path: %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func TestRenderSummary(t *testing.T) {
	l := New(Config{RunID: "run_1", Letter: "B", Start: 1})
	o := outcome("Baker, Ann", 1)
	o.ModalAppeared = true
	l.Append(context.Background(), o)

	var buf bytes.Buffer
	RenderSummary(&buf, l.Summary())
	out := buf.String()
	for _, want := range []string{"run_1", "Clients with modals", "Baker, Ann"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
}

func TestStore_RecordAndResume(t *testing.T) {
	ctx := context.Background()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := NewStore(db)

	if err := s.StartRun(ctx, "run_1", "B", 1); err != nil {
		t.Fatal(err)
	}
	l := New(Config{RunID: "run_1", Letter: "B", Sink: s})

	done := outcome("Baker, Ann", 1)
	done.TreatmentFolders = []string{"06/08/2023 HRT LABS"}
	done.Exports = []treatment.ExportRecord{
		{Entry: treatment.DocumentEntry{DisplayName: "Consent"}, Succeeded: true, State: treatment.StateClosed, Pages: 2},
		{Entry: treatment.DocumentEntry{DisplayName: "Labs", Position: 1}, State: treatment.StateFailed, FailedAt: treatment.StateSaved, Reason: "no pdf"},
	}
	failed := outcome("Brown, Bo", 2)
	failed.Processed = false
	l.Append(ctx, done)
	l.Append(ctx, failed)
	if err := s.FinishRun(ctx, "run_1", nil); err != nil {
		t.Fatal(err)
	}

	names, err := s.ProcessedNames(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Baker, Ann" {
		t.Errorf("processed names: %v", names)
	}
	last, err := s.LastIndex(ctx, "B")
	if err != nil || last != 2 {
		t.Errorf("last index: %d, %v", last, err)
	}
	if last, _ := s.LastIndex(ctx, "Z"); last != 0 {
		t.Errorf("last index of empty letter: %d", last)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM exports WHERE succeeded = 0 AND failed_at = 'saved'`).Scan(&n)
	if n != 1 {
		t.Errorf("failed export rows: %d", n)
	}
	var finished any
	db.QueryRow(`SELECT finished_at FROM runs WHERE id = 'run_1'`).Scan(&finished)
	if finished == nil {
		t.Error("run not finished")
	}
}

func TestOpenStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "aprexport.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.StartRun(context.Background(), "run_2", "C", 5); err != nil {
		t.Fatal(err)
	}
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	if err := s.StartRun(ctx, "run_hb", "B", 1); err != nil {
		t.Fatal(err)
	}
	if hs, err := s.LatestHeartbeat(ctx, "run_hb", time.Minute); err != nil || hs != nil {
		t.Fatalf("before any beat: %+v, %v", hs, err)
	}

	l := New(Config{RunID: "run_hb", Letter: "B"})
	l.Append(ctx, outcome("Baker, Ann", 7))
	hb := s.Heartbeat(l, time.Hour)
	hb.Start(ctx)
	hb.Stop()

	hs, err := s.LatestHeartbeat(ctx, "run_hb", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !hs.Alive || hs.Clients != 1 || hs.LastIndex != 7 {
		t.Errorf("heartbeat: %+v", hs)
	}

	now = now.Add(5 * time.Minute)
	if hs, _ := s.LatestHeartbeat(ctx, "run_hb", time.Minute); hs.Alive || hs.StaleFor != 4*time.Minute {
		t.Errorf("stale heartbeat: %+v", hs)
	}
}

func TestStore_ResumeRetriesRecordsTabFailures(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
	if err := s.StartRun(ctx, "run_3", "B", 1); err != nil {
		t.Fatal(err)
	}
	tab := outcome("Baker, Ann", 1)
	tab.RecordsVisited = false
	tab.RecordsProcessed = false
	if err := s.Record(ctx, "run_3", tab); err != nil {
		t.Fatal(err)
	}
	names, err := s.ProcessedNames(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("client without records seeded for resume: %v", names)
	}
}
