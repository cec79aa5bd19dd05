// CLAUDE:SUMMARY Blind drivers for the browser's native print and save dialogs: xdotool keystrokes or kiosk no-op.
// Package osdialog drives the native print and save dialogs that live outside
// the page. Nothing here can observe whether a dialog opened or accepted the
// input; the only proof of success is the file the export pipeline finds on
// disk afterwards.
package osdialog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Dialog is the unobservable native dialog surface.
type Dialog interface {
	// ConfirmPrint accepts the print preview, whose destination is preset to
	// "Save as PDF", which opens the save prompt.
	ConfirmPrint(ctx context.Context) error
	// SaveAs clears the prompt's file name, types path and confirms.
	SaveAs(ctx context.Context, path string) error
}

// Kinds accepted by New.
const (
	KindXdotool = "xdotool"
	KindKiosk   = "kiosk"
)

// Config selects and configures a Dialog.
type Config struct {
	Kind string `yaml:"kind"`
	// Display is the X display of the headful browser, e.g. ":99".
	Display string `yaml:"display"`
	// Bin is the xdotool executable.
	Bin string `yaml:"bin"`
	// TypeDelay is the delay between typed characters.
	TypeDelay time.Duration `yaml:"type_delay"`
}

// New returns the Dialog for cfg.Kind.
func New(cfg Config) (Dialog, error) {
	switch cfg.Kind {
	case "", KindXdotool:
		return NewXdotool(cfg), nil
	case KindKiosk:
		return Kiosk{}, nil
	}
	return nil, fmt.Errorf("osdialog: unknown dialog kind %q", cfg.Kind)
}

// Runner executes one xdotool invocation.
type Runner func(ctx context.Context, args ...string) error

// Xdotool sends synthetic keystrokes to whatever window has focus on the
// browser's X display.
type Xdotool struct {
	run       Runner
	typeDelay time.Duration
}

// NewXdotool returns an Xdotool dialog driver running the real binary.
func NewXdotool(cfg Config) *Xdotool {
	bin := cfg.Bin
	if bin == "" {
		bin = "xdotool"
	}
	delay := cfg.TypeDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	display := cfg.Display
	return &Xdotool{
		typeDelay: delay,
		run: func(ctx context.Context, args ...string) error {
			cmd := exec.CommandContext(ctx, bin, args...)
			if display != "" {
				cmd.Env = append(os.Environ(), "DISPLAY="+display)
			}
			var stderr bytes.Buffer
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("osdialog: %s %v: %w: %s", bin, args, err, bytes.TrimSpace(stderr.Bytes()))
			}
			return nil
		},
	}
}

// WithRunner replaces the process runner, for tests.
func (x *Xdotool) WithRunner(r Runner) *Xdotool {
	x.run = r
	return x
}

func (x *Xdotool) ConfirmPrint(ctx context.Context) error {
	return x.run(ctx, "key", "Return")
}

func (x *Xdotool) SaveAs(ctx context.Context, path string) error {
	if err := x.run(ctx, "key", "ctrl+a"); err != nil {
		return err
	}
	delay := strconv.FormatInt(x.typeDelay.Milliseconds(), 10)
	if err := x.run(ctx, "type", "--delay", delay, "--", path); err != nil {
		return err
	}
	return x.run(ctx, "key", "Return")
}

// Kiosk is used when the browser prints silently (--kiosk-printing): no
// dialog ever opens and the PDF lands in the download directory, where the
// export pipeline's fallback scan picks it up.
type Kiosk struct{}

func (Kiosk) ConfirmPrint(context.Context) error { return nil }
func (Kiosk) SaveAs(context.Context, string) error { return nil }
