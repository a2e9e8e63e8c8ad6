// Package dedup collapses Records pooled from overlapping captures. It is a
// pure function over its input; prior runs are excluded upstream by
// archiving, not remembered here.
package dedup

import "github.com/dtnitsch/deck-digest/models"

// Collapse returns one Record per unique ID, preserving first-seen order.
// When duplicates disagree on mutable fields (engagement counters, column
// position), the most recently captured variant wins.
func Collapse(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	position := make(map[string]int, len(records))

	for _, rec := range records {
		i, ok := position[rec.ID]
		if !ok {
			position[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}
		if rec.CapturedAt.After(out[i].CapturedAt) {
			out[i] = rec
		}
	}
	return out
}
