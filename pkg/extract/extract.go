// Package extract turns a DOM snapshot into Records, tolerating the unstable
// attribute-driven structure of the timeline page. It performs no I/O; all
// writes happen in pkg/export.
package extract

import (
	"bufio"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/snapshot"
)

// Result is the outcome of one capture. Either Records is non-empty and Mode
// is structured, or Text carries the plain-text fallback payload.
type Result struct {
	Records    []models.Record
	Text       string
	Mode       models.OutputMode
	Title      string
	SourceURL  string
	CapturedAt string // RFC3339, propagated to the fallback header
	Language   string
}

// Extractor converts snapshots to Records using a pluggable Layout.
type Extractor struct {
	Layout Layout
}

// New returns an Extractor using the default deck layout.
func New() *Extractor {
	return &Extractor{Layout: DeckLayout{}}
}

// Extract produces Records or a plain-text fallback from a snapshot.
// Selectors, when given, override default container discovery in structured
// mode and scope the text capture in text mode. A missing field never fails
// the capture; every lookup degrades to an empty value.
func (e *Extractor) Extract(snap *snapshot.Snapshot, selectors []string, mode models.OutputMode) *Result {
	result := &Result{
		SourceURL:  snap.SourceURL,
		Title:      normalizeText(snap.Doc.Find("title").First().Text()),
		CapturedAt: snap.CapturedAt.Format(timeLayout),
	}

	if mode != models.OutputText {
		layout := e.Layout
		if len(selectors) > 0 {
			layout = SelectorLayout{Selectors: selectors}
		}
		result.Records = extractRecords(snap, layout)
	}

	if len(result.Records) > 0 {
		result.Mode = models.OutputStructured
		result.Language = tagLanguage(result.Records)
		return result
	}

	// Text mode, or structured extraction came up empty.
	result.Mode = models.OutputText
	result.Text = extractText(snap.Doc, snap.SourceURL, selectors)
	if lang, ok := DetectLanguage(result.Text); ok {
		result.Language = lang
	}
	return result
}

func extractRecords(snap *snapshot.Snapshot, layout Layout) []models.Record {
	candidates := layout.Posts(snap.Doc)

	records := make([]models.Record, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		rec := recordFromCandidate(c, snap.CapturedAt)
		if rec.Text == "" && rec.Author == "" {
			continue
		}
		// IDs must be unique within one batch; overlapping selectors can
		// surface the same post twice in a single snapshot.
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records
}

// extractText captures free text per selector, or whole-page text when no
// selectors are given. Readability distills the page first; when it has
// nothing to say the raw body text is used.
func extractText(doc *goquery.Document, sourceURL string, selectors []string) string {
	if len(selectors) > 0 {
		var sections []string
		for _, sel := range selectors {
			matches := findSafe(doc, sel)
			if matches == nil {
				continue
			}
			text := normalizeBlock(matches.Text())
			if text == "" {
				continue
			}
			sections = append(sections, "== "+sel+" ==\n"+text)
		}
		if len(sections) > 0 {
			return strings.Join(sections, "\n\n")
		}
	}

	if parsedURL, err := url.Parse(sourceURL); err == nil {
		if htmlStr, err := doc.Html(); err == nil {
			parser := readability.NewParser()
			article, err := parser.Parse(strings.NewReader(htmlStr), parsedURL)
			if err == nil && strings.TrimSpace(article.TextContent) != "" {
				return normalizeBlock(article.TextContent)
			}
		}
	}

	return normalizeBlock(doc.Find("body").Text())
}

func tagLanguage(records []models.Record) string {
	lang, ok := DetectLanguage(models.PlainText(records))
	if !ok {
		return ""
	}
	for i := range records {
		records[i].Language = lang
	}
	return lang
}

// normalizeText collapses a string onto one line, trimming space per line.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

// normalizeBlock preserves line structure but drops blank runs and
// per-line padding.
func normalizeBlock(input string) string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
