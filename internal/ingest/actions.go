// Package ingest runs the batch-to-digest pipeline: scan, dedup, chunk,
// summarize, merge, deliver, archive.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/deck-digest/internal/common"
	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/chunk"
	"github.com/dtnitsch/deck-digest/pkg/dedup"
	"github.com/dtnitsch/deck-digest/pkg/digest"
	"github.com/dtnitsch/deck-digest/pkg/llm"
	"github.com/dtnitsch/deck-digest/pkg/notify"
	"github.com/dtnitsch/deck-digest/pkg/scan"
	"github.com/dtnitsch/deck-digest/pkg/state"
)

// runLockTTL bounds how long a crashed run can block the next one.
const runLockTTL = 30 * time.Minute

// IngestAction runs one ingestion pass end to end. Success archives the
// consumed batches; any summarization or delivery failure leaves them
// untouched for the next run.
func IngestAction(c *cli.Context) error {
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

	var notifier notify.Notifier
	if c.Bool("dry-run") {
		notifier = notify.NewStdoutNotifier()
	} else {
		notifier = notify.NewEmailNotifier(cfg.Email)
	}

	return run(c.Context, cfg, store, notifier, logger)
}

func run(ctx context.Context, cfg *models.Config, store *state.Store, notifier notify.Notifier, logger *slog.Logger) error {
	startedAt := time.Now()

	acquired, err := store.AcquireRunLock(startedAt, runLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Warn("another ingestion run is active, exiting")
		return nil
	}
	defer func() {
		if err := store.ReleaseRunLock(); err != nil {
			logger.Warn("failed to release run lock", "error", err)
		}
	}()

	scanner := scan.New(cfg.Capture.ExportDir, time.Duration(cfg.Ingest.WindowMinutes)*time.Minute, store, logger)
	batches, err := scanner.Fresh(startedAt)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		logger.Info("no fresh batches, nothing to do")
		return store.RecordSkip(startedAt)
	}

	var pooled []models.Record
	names := make([]string, 0, len(batches))
	paths := make([]string, 0, len(batches))
	for _, b := range batches {
		pooled = append(pooled, b.Records...)
		names = append(names, b.Name)
		paths = append(paths, b.Path)
	}

	records := dedup.Collapse(pooled)
	logger.Info("pooled batches",
		"batches", len(batches), "records", len(pooled), "after_dedup", len(records))
	if len(records) == 0 {
		return store.RecordSkip(startedAt)
	}

	chunks := chunk.Split(records, cfg.Summarizer.ChunkChars)
	logger.Info("split into chunks", "chunks", len(chunks), "budget", cfg.Summarizer.ChunkChars)

	client := llm.NewClient(cfg.Summarizer)
	merger := digest.NewMerger(client, cfg.Summarizer.GroupLimit, logger)

	summaries, err := merger.SummarizeChunks(ctx, chunks, dominantLanguage(records))
	if err != nil {
		if recErr := store.RecordFailure(startedAt, "summarize", err); recErr != nil {
			logger.Error("failed to record run failure", "error", recErr)
		}
		return err
	}

	text, err := merger.Merge(ctx, summaries)
	if err != nil {
		if recErr := store.RecordFailure(startedAt, "merge", err); recErr != nil {
			logger.Error("failed to record run failure", "error", recErr)
		}
		return err
	}

	subject := fmt.Sprintf("Deck digest %s (%d posts)", startedAt.Format("2006-01-02 15:04"), len(records))
	if err := notifier.Send(ctx, subject, text); err != nil {
		if recErr := store.RecordFailure(startedAt, "deliver", err); recErr != nil {
			logger.Error("failed to record run failure", "error", recErr)
		}
		return err
	}

	res := state.RunResult{
		StartedAt:   startedAt,
		BatchNames:  names,
		RecordCount: len(records),
		ChunkCount:  len(chunks),
		Digest:      text,
	}
	if err := store.Commit(res, nil); err != nil {
		return err
	}

	archived := state.ArchiveFiles(cfg.Capture.ExportDir, paths, startedAt, logger)
	if err := store.SetArchivedPaths(archived); err != nil {
		logger.Warn("failed to record archive paths", "error", err)
	}

	entry := digest.FeedEntry{
		GeneratedAt: startedAt,
		RecordCount: len(records),
		ChunkCount:  len(chunks),
		Summary:     text,
		SourceFiles: names,
	}
	if err := digest.UpdateFeed(cfg.Feed.Path, entry, cfg.Feed.MaxEntries); err != nil {
		logger.Warn("failed to update feed", "error", err)
	}

	logger.Info("digest delivered",
		"batches", len(batches), "records", len(records), "chunks", len(chunks))
	return nil
}

// dominantLanguage picks the most common detected language across the pool,
// used only as a hint in the summarization prompts.
func dominantLanguage(records []models.Record) string {
	counts := map[string]int{}
	best := ""
	for _, r := range records {
		if r.Language == "" {
			continue
		}
		counts[r.Language]++
		if best == "" || counts[r.Language] > counts[best] {
			best = r.Language
		}
	}
	return best
}

// TestEmailAction sends a canned message through the configured notifier so
// SMTP credentials can be verified without running the pipeline.
func TestEmailAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	if c.Bool("dry-run") {
		notifier = notify.NewStdoutNotifier()
	} else {
		notifier = notify.NewEmailNotifier(cfg.Email)
	}

	body := fmt.Sprintf("Test message sent at %s.\nIf you can read this, delivery is configured correctly.",
		time.Now().Format(time.RFC3339))
	if err := notifier.Send(c.Context, "Deck digest test email", body); err != nil {
		return err
	}
	logger.Info("test email sent", "recipients", len(cfg.Email.To))
	return nil
}
