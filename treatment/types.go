// CLAUDE:SUMMARY Data model for one export run: client identity, record tree nodes, export records and visit outcomes.
// Package treatment holds the data model shared by the navigation and export
// components: who a client is, what their record tree contains, and what
// happened when each document was exported.
package treatment

// Unknown is the sentinel used when a client name or id cannot be read.
const Unknown = "Unknown"

// ClientIdentity identifies the client currently open in the browser.
// It is only a naming key for output folders and files.
type ClientIdentity struct {
	DisplayName string `json:"display_name"`
	ExternalID  string `json:"external_id"`
	FolderKey   string `json:"folder_key"`
}

// NewClientIdentity builds an identity, substituting Unknown for blank parts
// and deriving the filesystem-safe folder key.
func NewClientIdentity(name, id string) ClientIdentity {
	if name == "" {
		name = Unknown
	}
	if id == "" {
		id = Unknown
	}
	return ClientIdentity{
		DisplayName: name,
		ExternalID:  id,
		FolderKey:   FolderKey(name, id),
	}
}

// UnknownClient is the identity reported when nothing could be extracted.
func UnknownClient() ClientIdentity {
	return ClientIdentity{DisplayName: Unknown, ExternalID: Unknown, FolderKey: Unknown}
}

// RecordGroup is a top-level node of a client's electronic-records tree.
type RecordGroup struct {
	Title    string `json:"title"`
	Expanded bool   `json:"expanded"`
}

// DocumentEntry is one exportable document inside a DocumentFolder.
// Position is the 0-based index at discovery time.
type DocumentEntry struct {
	DisplayName string `json:"display_name"`
	Position    int    `json:"position"`
}

// ExportState is a state of the document export state machine.
type ExportState int

const (
	StateIdle ExportState = iota
	StateOpened
	StatePrintTriggered
	StateSaveDialogOpen
	StateSaved
	StateVerified
	StateClosed
	StateFailed
)

func (s ExportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpened:
		return "opened"
	case StatePrintTriggered:
		return "print_triggered"
	case StateSaveDialogOpen:
		return "save_dialog_open"
	case StateSaved:
		return "saved"
	case StateVerified:
		return "verified"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ExportRecord is the outcome of exporting one DocumentEntry.
type ExportRecord struct {
	Entry                DocumentEntry `json:"entry"`
	RecordTitle          string        `json:"record_title"`
	TargetPath           string        `json:"target_path"`
	Succeeded            bool          `json:"succeeded"`
	RecoveredViaFallback bool          `json:"recovered_via_fallback"`

	// State is the terminal state reached: StateClosed or StateFailed.
	State ExportState `json:"state"`
	// FailedAt is the state the pipeline was in when it failed.
	FailedAt ExportState `json:"failed_at,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	// Pages is the page count of the saved PDF, 0 if it could not be read.
	Pages int `json:"pages,omitempty"`
}

// ClientVisitOutcome aggregates everything recorded about one client visit.
// It is appended to the run log and never mutated afterwards.
type ClientVisitOutcome struct {
	Letter         string         `json:"letter"`
	ListName       string         `json:"name"`
	Index          int            `json:"index"`
	Page           int            `json:"page"`
	PositionOnPage int            `json:"position_on_page"`
	Processed      bool           `json:"processed"`
	ModalAppeared  bool           `json:"modal_appeared"`
	Client         ClientIdentity `json:"client"`

	RecordsVisited   bool     `json:"electronic_records_visited"`
	RecordsProcessed bool     `json:"electronic_records_processed"`
	TreatmentFolders []string `json:"treatment_record_folders"`

	Exports []ExportRecord `json:"exports"`
}

// Exported counts the succeeded export records.
func (o ClientVisitOutcome) Exported() int {
	n := 0
	for _, r := range o.Exports {
		if r.Succeeded {
			n++
		}
	}
	return n
}
