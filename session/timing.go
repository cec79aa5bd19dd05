package session

import "time"

// Timing holds every wait budget and settle delay used against the target
// application. Zero fields take the defaults below.
type Timing struct {
	Poll    time.Duration `yaml:"poll"`
	Default time.Duration `yaml:"default"`

	Spinner      time.Duration `yaml:"spinner"`
	Loading      time.Duration `yaml:"loading"`
	Interstitial time.Duration `yaml:"interstitial"`
	PageControl  time.Duration `yaml:"page_control"`

	LetterSettle time.Duration `yaml:"letter_settle"`
	PageSettle   time.Duration `yaml:"page_settle"`
	ClientSettle time.Duration `yaml:"client_settle"`
	ModalSettle  time.Duration `yaml:"modal_settle"`
	TabSettle    time.Duration `yaml:"tab_settle"`
	ExpandSettle time.Duration `yaml:"expand_settle"`

	ViewerSettle      time.Duration `yaml:"viewer_settle"`
	FormProbe         time.Duration `yaml:"form_probe"`
	FormProbeInterval time.Duration `yaml:"form_probe_interval"`
	PrintDialog       time.Duration `yaml:"print_dialog"`
	SaveDialog        time.Duration `yaml:"save_dialog"`
	SaveSettle        time.Duration `yaml:"save_settle"`
	CloseSettle       time.Duration `yaml:"close_settle"`
	AfterClose        time.Duration `yaml:"after_close"`

	BetweenDocuments time.Duration `yaml:"between_documents"`
	BetweenClients   time.Duration `yaml:"between_clients"`
}

// DefaultTiming mirrors the delays the target application needs in practice.
func DefaultTiming() Timing {
	return Timing{
		Poll:    500 * time.Millisecond,
		Default: 10 * time.Second,

		Spinner:      30 * time.Second,
		Loading:      30 * time.Second,
		Interstitial: 15 * time.Second,
		PageControl:  5 * time.Second,

		LetterSettle: 3 * time.Second,
		PageSettle:   2 * time.Second,
		ClientSettle: 5 * time.Second,
		ModalSettle:  2 * time.Second,
		TabSettle:    3 * time.Second,
		ExpandSettle: 2 * time.Second,

		ViewerSettle:      5 * time.Second,
		FormProbe:         20 * time.Second,
		FormProbeInterval: 3 * time.Second,
		PrintDialog:       2 * time.Second,
		SaveDialog:        1 * time.Second,
		SaveSettle:        3 * time.Second,
		CloseSettle:       2 * time.Second,
		AfterClose:        4 * time.Second,

		BetweenDocuments: 2 * time.Second,
		BetweenClients:   2 * time.Second,
	}
}

func (t *Timing) applyDefaults() {
	d := DefaultTiming()
	set := func(dst *time.Duration, def time.Duration) {
		if *dst <= 0 {
			*dst = def
		}
	}
	set(&t.Poll, d.Poll)
	set(&t.Default, d.Default)
	set(&t.Spinner, d.Spinner)
	set(&t.Loading, d.Loading)
	set(&t.Interstitial, d.Interstitial)
	set(&t.PageControl, d.PageControl)
	set(&t.LetterSettle, d.LetterSettle)
	set(&t.PageSettle, d.PageSettle)
	set(&t.ClientSettle, d.ClientSettle)
	set(&t.ModalSettle, d.ModalSettle)
	set(&t.TabSettle, d.TabSettle)
	set(&t.ExpandSettle, d.ExpandSettle)
	set(&t.ViewerSettle, d.ViewerSettle)
	set(&t.FormProbe, d.FormProbe)
	set(&t.FormProbeInterval, d.FormProbeInterval)
	set(&t.PrintDialog, d.PrintDialog)
	set(&t.SaveDialog, d.SaveDialog)
	set(&t.SaveSettle, d.SaveSettle)
	set(&t.CloseSettle, d.CloseSettle)
	set(&t.AfterClose, d.AfterClose)
	set(&t.BetweenDocuments, d.BetweenDocuments)
	set(&t.BetweenClients, d.BetweenClients)
}
