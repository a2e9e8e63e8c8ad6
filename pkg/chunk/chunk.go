// Package chunk partitions deduplicated Records into size-bounded groups for
// summarization. Chunk boundaries fall on Record boundaries only.
package chunk

import "github.com/dtnitsch/deck-digest/models"

// DefaultBudget is the serialized-size ceiling per chunk, in characters.
const DefaultBudget = 8000

// Chunk is a contiguous subsequence of Records whose serialized text fits the
// budget. A single Record larger than the budget forms its own oversized
// chunk rather than being dropped or truncated.
type Chunk struct {
	Records []models.Record
	Size    int
}

// Size accounts serialized length in runes, matching the prompt that will
// carry the text.
func recordSize(r models.Record) int {
	return len([]rune(r.Text))
}

// Split partitions records in input order. Every chunk's size is <= budget
// except a chunk holding exactly one oversized record; concatenating the
// chunks reproduces the input exactly.
func Split(records []models.Record, budget int) []Chunk {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if len(records) == 0 {
		return nil
	}

	var chunks []Chunk
	current := Chunk{}

	for _, rec := range records {
		size := recordSize(rec)
		if len(current.Records) > 0 && current.Size+size > budget {
			chunks = append(chunks, current)
			current = Chunk{}
		}
		current.Records = append(current.Records, rec)
		current.Size += size
	}

	if len(current.Records) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Text serializes a chunk for one summarization call.
func (c Chunk) Text() string {
	return models.PlainText(c.Records)
}
