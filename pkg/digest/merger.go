// Package digest turns chunk texts into per-chunk summaries and merges them
// into the final trend report.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dtnitsch/deck-digest/pkg/chunk"
)

// Summarizer is the completion surface the merger needs; satisfied by
// *llm.Client.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Digest is the terminal artifact of one run.
type Digest struct {
	Text          string
	SourceBatches []string
	RecordCount   int
	ChunkCount    int
	GeneratedAt   time.Time
}

// Merger drives chunk summarization and the merge step.
type Merger struct {
	client Summarizer
	// groupLimit caps how many summaries feed a single merge call; larger
	// sets are compressed hierarchically first.
	groupLimit int
	logger     *slog.Logger
}

func NewMerger(client Summarizer, groupLimit int, logger *slog.Logger) *Merger {
	if groupLimit <= 0 {
		groupLimit = 5
	}
	return &Merger{client: client, groupLimit: groupLimit, logger: logger}
}

// SummarizeChunks summarizes every chunk in order. Any chunk failing after
// retries fails the whole run; partial digests are never produced.
func (m *Merger) SummarizeChunks(ctx context.Context, chunks []chunk.Chunk, language string) ([]string, error) {
	summaries := make([]string, 0, len(chunks))
	for i, c := range chunks {
		m.logger.Info("summarizing chunk", "chunk", i+1, "total", len(chunks), "records", len(c.Records))
		summary, err := m.client.Summarize(ctx, chunkPrompt(c.Text(), i+1, len(chunks), language))
		if err != nil {
			return nil, fmt.Errorf("digest: chunk %d/%d failed: %w", i+1, len(chunks), err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Merge combines per-chunk summaries, in chunk order, into one digest text.
// A single summary passes through untouched. The final merge call falling
// over degrades to a labeled concatenation of the summaries it was given;
// every chunk is still represented, so this is not a partial digest.
func (m *Merger) Merge(ctx context.Context, summaries []string) (string, error) {
	if len(summaries) == 0 {
		return "", fmt.Errorf("digest: nothing to merge")
	}
	if len(summaries) == 1 {
		return summaries[0], nil
	}

	compressed := m.compress(ctx, summaries)

	merged, err := m.client.Summarize(ctx, overallPrompt(compressed))
	if err != nil {
		m.logger.Warn("final merge failed, falling back to concatenation", "error", err)
		return concatenate(compressed), nil
	}
	return merged, nil
}

// compress reduces the summary set below the group limit through
// intermediate merge calls, preserving order. A failed group merge keeps the
// group's raw summaries joined instead.
func (m *Merger) compress(ctx context.Context, summaries []string) []string {
	current := summaries
	stage := 0
	for len(current) > m.groupLimit {
		stage++
		totalGroups := (len(current) + m.groupLimit - 1) / m.groupLimit
		m.logger.Info("compressing summaries", "stage", stage, "count", len(current), "groups", totalGroups)

		next := make([]string, 0, totalGroups)
		for start := 0; start < len(current); start += m.groupLimit {
			end := start + m.groupLimit
			if end > len(current) {
				end = len(current)
			}
			group := current[start:end]

			combined, err := m.client.Summarize(ctx, intermediatePrompt(group, stage, len(next)+1, totalGroups))
			if err != nil {
				m.logger.Warn("group merge failed, keeping raw summaries",
					"stage", stage, "group", len(next)+1, "error", err)
				combined = strings.Join(group, "\n\n")
			}
			next = append(next, combined)
		}
		current = next
	}
	return current
}

func concatenate(summaries []string) string {
	var sb strings.Builder
	sb.WriteString("[Notice] Automatic merging failed; the section summaries below are concatenated and should be reviewed manually.\n")
	for i, s := range summaries {
		sb.WriteString(fmt.Sprintf("\nSection summary %d:\n%s\n", i+1, s))
	}
	return sb.String()
}
