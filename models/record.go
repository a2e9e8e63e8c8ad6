// Package models defines the data contracts shared across the capture and
// ingestion sides of the pipeline.
package models

import (
	"strings"
	"time"
)

// Record is one captured post. ID is unique within a single export batch;
// across batches duplicates are expected and collapsed by pkg/dedup.
type Record struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	PostedAt   time.Time `json:"posted_at,omitempty"` // zero when the source showed no timestamp
	Author     string    `json:"author,omitempty"`
	Text       string    `json:"text"`

	// Extraction metadata, preserved for traceability. Column position is
	// recomputed per capture and is not a stable identity.
	ColumnTitle    string   `json:"column_title,omitempty"`
	ColumnID       string   `json:"column_id,omitempty"`
	ColumnPosition int      `json:"column_position,omitempty"`
	MediaURLs      []string `json:"media_urls,omitempty"`
	Replies        int      `json:"replies,omitempty"`
	Reposts        int      `json:"reposts,omitempty"`
	Likes          int      `json:"likes,omitempty"`
	Language       string   `json:"language,omitempty"` // ISO-639-1 if detected
}

// Timestamp returns PostedAt, substituting CapturedAt when the source gave
// no posting time.
func (r Record) Timestamp() time.Time {
	if !r.PostedAt.IsZero() {
		return r.PostedAt
	}
	return r.CapturedAt
}

// Batch is one exported file of Records. Immutable once written; consumed
// exactly once by the ingestion scanner and then archived.
type Batch struct {
	Name    string // filename, the archiving key
	Path    string
	Records []Record
}

// PlainText joins the record texts for serialization size accounting and
// prompt assembly.
func PlainText(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
