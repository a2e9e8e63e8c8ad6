package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Column describes the deck column a post was found under. Position is
// 1-based among sibling columns and is recomputed per capture; it is not a
// stable identity.
type Column struct {
	Title    string
	ID       string
	Position int
}

// Candidate is one post-like container yielded by a Layout, with the column
// context it sits in (nil when the post is not inside a column).
type Candidate struct {
	Node   *goquery.Selection
	Column *Column
}

// Layout yields candidate post nodes from a snapshot. Page-structure drift is
// isolated to layout implementations; field extraction stays shared.
type Layout interface {
	Posts(doc *goquery.Document) []Candidate
}

// columnSelectors are tried in order when discovering deck columns.
var columnSelectors = []string{
	`section[data-column]`,
	`div[data-testid="multi-column-layout-column"]`,
	`section.column`,
	`div.column`,
}

// postSelectors are tried in order when discovering post containers.
var postSelectors = []string{
	`article`,
	`div[data-testid="tweet"]`,
	`li.stream-item`,
}

// DeckLayout is the default strategy: repeating article elements, optionally
// nested under named column containers.
type DeckLayout struct{}

func (DeckLayout) Posts(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	seen := make(map[*html.Node]bool)

	columns := findColumns(doc)
	for i := range columns {
		col := &columns[i].meta
		columns[i].node.Find(strings.Join(postSelectors, ",")).Each(func(_ int, s *goquery.Selection) {
			candidates = append(candidates, Candidate{Node: s, Column: col})
			if len(s.Nodes) > 0 {
				seen[s.Nodes[0]] = true
			}
		})
	}

	// Posts outside any column container still count.
	for _, sel := range postSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if len(s.Nodes) > 0 && seen[s.Nodes[0]] {
				return
			}
			if insideColumn(s) {
				return
			}
			candidates = append(candidates, Candidate{Node: s})
		})
		if len(candidates) > 0 {
			break
		}
	}

	return candidates
}

type foundColumn struct {
	node *goquery.Selection
	meta Column
}

func findColumns(doc *goquery.Document) []foundColumn {
	var found []foundColumn
	for _, sel := range columnSelectors {
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			found = append(found, foundColumn{
				node: s,
				meta: Column{
					Title:    columnTitle(s),
					ID:       columnID(s, i+1),
					Position: i + 1,
				},
			})
		})
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func columnTitle(s *goquery.Selection) string {
	for _, sel := range []string{`header [data-testid="columnHeader"]`, `header h1`, `header h2`, `.column-title`, `header`} {
		if title := normalizeText(s.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

func columnID(s *goquery.Selection, position int) string {
	for _, attr := range []string{"data-column", "data-column-id", "id"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}
	if title := columnTitle(s); title != "" {
		return title
	}
	return fmt.Sprintf("col-%d", position)
}

func insideColumn(s *goquery.Selection) bool {
	for _, sel := range columnSelectors {
		if s.ParentsFiltered(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// SelectorLayout discovers posts via a caller-supplied selector list instead
// of the default container discovery. Selector parse failures surface as
// zero candidates for that selector, never as a capture failure.
type SelectorLayout struct {
	Selectors []string
}

func (l SelectorLayout) Posts(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	for _, sel := range l.Selectors {
		matches := findSafe(doc, sel)
		if matches == nil {
			continue
		}
		matches.Each(func(_ int, s *goquery.Selection) {
			c := Candidate{Node: s}
			if col := enclosingColumn(doc, s); col != nil {
				c.Column = col
			}
			candidates = append(candidates, c)
		})
	}
	return candidates
}

// findSafe shields callers from invalid selector strings; cascadia panics on
// some malformed inputs.
func findSafe(doc *goquery.Document, selector string) (sel *goquery.Selection) {
	defer func() {
		if recover() != nil {
			sel = nil
		}
	}()
	return doc.Find(selector)
}

// enclosingColumn resolves the column metadata for a node found by an
// arbitrary selector, including its 1-based position among siblings.
func enclosingColumn(doc *goquery.Document, s *goquery.Selection) *Column {
	for _, sel := range columnSelectors {
		parent := s.ParentsFiltered(sel).First()
		if parent.Length() == 0 {
			continue
		}
		position := 1
		doc.Find(sel).EachWithBreak(func(i int, candidate *goquery.Selection) bool {
			if candidate.IsSelection(parent) {
				position = i + 1
				return false
			}
			return true
		})
		return &Column{
			Title:    columnTitle(parent),
			ID:       columnID(parent, position),
			Position: position,
		}
	}
	return nil
}
