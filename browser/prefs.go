package browser

import (
	"encoding/json"
	"path/filepath"
)

// savePDFState pre-selects "Save as PDF" in the print preview.
const savePDFState = `{"recentDestinations":[{"id":"Save as PDF","origin":"local","account":""}],"selectedDestinationId":"Save as PDF","version":2}`

// preferences returns the Chrome profile preferences that route printing
// and downloads to dir.
func preferences(dir string) ([]byte, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	prefs := map[string]any{
		"printing": map[string]any{
			"print_preview_sticky_settings": map[string]any{"appState": savePDFState},
			"default_destination_selection_rules": map[string]any{
				"kind":        "local",
				"namePattern": "Save as PDF",
			},
		},
		"savefile": map[string]any{"default_directory": abs},
		"download": map[string]any{
			"default_directory":   abs,
			"prompt_for_download": false,
			"directory_upgrade":   true,
		},
		"plugins": map[string]any{"always_open_pdf_externally": true},
	}
	return json.Marshal(prefs)
}
