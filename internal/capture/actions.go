// Package capture wires the snapshot source, extractor, and export writer
// behind the capture and watch commands.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/deck-digest/internal/common"
	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/export"
	"github.com/dtnitsch/deck-digest/pkg/extract"
	"github.com/dtnitsch/deck-digest/pkg/schedule"
	"github.com/dtnitsch/deck-digest/pkg/snapshot"
	"github.com/dtnitsch/deck-digest/pkg/state"
)

// newCaptureFunc builds the capture pipeline: snapshot -> extract -> export.
func newCaptureFunc(logger *slog.Logger, src snapshot.Source, extractor *extract.Extractor, writer *export.Writer, base string) schedule.CaptureFunc {
	return func(_ context.Context, selectors []string, mode models.OutputMode) error {
		snap, err := src.Snapshot()
		if err != nil {
			return err
		}

		res := extractor.Extract(snap, selectors, mode)
		path, err := writer.WriteResult(res, base)
		if err != nil {
			return err
		}

		if path == "" {
			logger.Info("capture yielded no content, nothing written")
			return nil
		}
		logger.Info("capture written",
			"path", path, "mode", string(res.Mode), "records", len(res.Records), "language", res.Language)
		return nil
	}
}

// exportBase derives the batch filename stem from the capture source.
func exportBase(source string) string {
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		return "deck-" + strings.ReplaceAll(u.Host, ".", "_")
	}
	return "deck-capture"
}

func buildScheduler(c *cli.Context, cfg *models.Config, logger *slog.Logger, store *state.Store) (*schedule.Scheduler, error) {
	source := cfg.Capture.Source
	if c.IsSet("source") {
		source = c.String("source")
	}
	if source == "" {
		return nil, fmt.Errorf("capture: no source configured (set capture.source or --source)")
	}

	writer, err := export.NewWriter(cfg.Capture.ExportDir)
	if err != nil {
		return nil, err
	}

	capture := newCaptureFunc(logger, snapshot.ForSource(source), extract.New(), writer, exportBase(source))
	return schedule.New(capture, store, logger), nil
}

func overrides(c *cli.Context) ([]string, models.OutputMode, error) {
	var selectors []string
	if c.IsSet("selectors") {
		for _, sel := range strings.Split(c.String("selectors"), ",") {
			if sel = strings.TrimSpace(sel); sel != "" {
				selectors = append(selectors, sel)
			}
		}
		if selectors == nil {
			selectors = []string{}
		}
	}

	var mode models.OutputMode
	if c.IsSet("output-mode") {
		parsed, err := models.ParseOutputMode(c.String("output-mode"))
		if err != nil {
			return nil, "", err
		}
		mode = parsed
	}
	return selectors, mode, nil
}

// CaptureAction runs a single capture immediately.
func CaptureAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	scheduler, err := buildScheduler(c, cfg, logger, store)
	if err != nil {
		return err
	}

	selectors, mode, err := overrides(c)
	if err != nil {
		return err
	}
	if selectors == nil {
		selectors = cfg.Capture.Selectors
	}
	if mode == "" {
		mode, _ = models.ParseOutputMode(cfg.Capture.OutputMode)
	}

	return scheduler.CaptureOnce(c.Context, selectors, mode)
}

// WatchAction runs the capture scheduler until interrupted.
func WatchAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	scheduler, err := buildScheduler(c, cfg, logger, store)
	if err != nil {
		return err
	}

	mode, err := models.ParseOutputMode(cfg.Capture.OutputMode)
	if err != nil {
		return err
	}

	settings := schedule.Settings{
		Interval:  time.Duration(cfg.Capture.IntervalMinutes) * time.Minute,
		Delay:     time.Duration(cfg.Capture.DelayMinutes) * time.Minute,
		Selectors: cfg.Capture.Selectors,
		Mode:      mode,
	}
	if err := scheduler.Start(settings); err != nil {
		return err
	}

	status := scheduler.CurrentStatus()
	logger.Info("watching", "next_run", status.NextRun.Format(time.RFC3339))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	scheduler.Stop()
	return nil
}
