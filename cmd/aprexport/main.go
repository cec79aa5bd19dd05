// CLAUDE:SUMMARY CLI entry point for aprexport: logs in, sweeps one letter of the client list, exports treatment record PDFs, prints a summary.
// Command aprexport exports AestheticsPro treatment records to PDF.
//
// Usage:
//
//	aprexport -letter B                       # whole letter from the first client
//	aprexport -letter B -start 150 -save-log  # from client #150, write the CSV
//	aprexport -config aprexport.yaml -letter B -resume
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/aprexport/browser"
	"github.com/hazyhaar/aprexport/config"
	"github.com/hazyhaar/aprexport/idgen"
	"github.com/hazyhaar/aprexport/osdialog"
	"github.com/hazyhaar/aprexport/runlog"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/statusz"
	"github.com/hazyhaar/aprexport/sweep"
)

const heartbeatInterval = 15 * time.Second

type options struct {
	configPath string
	letter     string
	start      int
	saveLog    bool
	csvPath    string
	resume     bool
	statusAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to aprexport.yaml (defaults apply when empty)")
	flag.StringVar(&opts.letter, "letter", "", "letter of the client list to sweep (A-Z)")
	flag.IntVar(&opts.start, "start", 0, "1-based client index to start from (default 1, or the last recorded index with -resume)")
	flag.BoolVar(&opts.saveLog, "save-log", false, "write the summary CSV to the working directory")
	flag.StringVar(&opts.csvPath, "csv", "", "write the summary CSV to this path")
	flag.BoolVar(&opts.resume, "resume", false, "skip clients processed by earlier runs of the same letter")
	flag.StringVar(&opts.statusAddr, "status-addr", "", "serve /healthz and /status on this address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("aprexport: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	letter, err := sweep.NormalizeLetter(opts.letter)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.statusAddr != "" {
		cfg.StatusAddr = opts.statusAddr
	}
	creds, err := config.Credentials(os.Getenv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.MainFolder, 0o755); err != nil {
		return fmt.Errorf("output folder: %w", err)
	}
	dialog, err := osdialog.New(cfg.Dialog)
	if err != nil {
		return err
	}

	runID := idgen.RunID()
	start := max(opts.start, 1)

	var store *runlog.Store
	var sink runlog.Sink
	if !cfg.Store.Disabled() {
		store, err = runlog.OpenStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		sink = store
	}

	var seed []string
	if opts.resume {
		if store == nil {
			return errors.New("-resume needs the run store (store.path is off)")
		}
		if seed, err = store.ProcessedNames(ctx, letter); err != nil {
			return err
		}
		if opts.start == 0 {
			last, err := store.LastIndex(ctx, letter)
			if err != nil {
				return err
			}
			start = max(last, 1)
		}
		logger.Info("aprexport: resuming", "letter", letter, "start", start, "processed_before", len(seed))
	}
	if store != nil {
		if err := store.StartRun(ctx, runID, letter, start); err != nil {
			return err
		}
	}

	log := runlog.New(runlog.Config{RunID: runID, Letter: letter, Start: start, Sink: sink, Logger: logger})
	log.Seed(seed...)
	if store != nil {
		hb := store.Heartbeat(log, heartbeatInterval)
		hb.Start(ctx)
		defer hb.Stop()
	}

	cfg.Browser.Logger = logger
	mgr := browser.NewManager(cfg.Browser)
	defer mgr.Close()
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	page, err := mgr.OpenPage(ctx)
	if err != nil {
		return err
	}

	s := session.New(session.Config{Page: page, Timing: cfg.Timing, Logger: logger})
	ctrl := sweep.New(sweep.Config{
		Session:      s,
		Dialog:       dialog,
		MainFolder:   cfg.Output.MainFolder,
		RecordsLabel: cfg.Records.FolderLabel,
		Log:          log,
	})

	if cfg.StatusAddr != "" {
		go func() {
			var routes []statusz.Option
			if store != nil {
				routes = append(routes, statusz.WithHeartbeat(store, 3*heartbeatInterval))
			}
			if err := statusz.Serve(ctx, cfg.StatusAddr, statusz.Router(log, routes...), logger); err != nil {
				logger.Error("aprexport: status endpoint", "error", err)
			}
		}()
	}

	if err := ctrl.Portal().Login(ctx, creds); err != nil {
		return finish(ctx, logger, store, log, opts, err)
	}
	if err := ctrl.Portal().OpenList(ctx); err != nil {
		return finish(ctx, logger, store, log, opts, err)
	}

	_, runErr := ctrl.Run(ctx, letter, start)
	return finish(ctx, logger, store, log, opts, runErr)
}

// finish closes the run in the store, prints the summary and writes the CSV.
// It returns runErr so a failed run still exits non-zero.
func finish(ctx context.Context, logger *slog.Logger, store *runlog.Store, log *runlog.Log, opts options, runErr error) error {
	ctx = context.WithoutCancel(ctx)
	if store != nil {
		if err := store.FinishRun(ctx, log.RunID(), runErr); err != nil {
			logger.Error("aprexport: finish run", "error", err)
		}
	}

	runlog.RenderSummary(os.Stdout, log.Summary())

	if opts.saveLog || opts.csvPath != "" {
		path, err := runlog.SaveCSV(opts.csvPath, time.Now(), log.Outcomes())
		if err != nil {
			logger.Error("aprexport: save csv", "error", err)
		} else {
			logger.Info("aprexport: summary saved", "path", path)
		}
	}
	return runErr
}
