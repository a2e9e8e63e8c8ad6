package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/deck-digest/models"
)

const timeLayout = time.RFC3339

// statusIDPattern pulls the numeric post identifier out of a permalink.
var statusIDPattern = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// recordFromCandidate extracts every field it can from one post container.
// Any missing sub-element yields an empty or zero field, never an error.
func recordFromCandidate(c Candidate, capturedAt time.Time) models.Record {
	rec := models.Record{
		CapturedAt: capturedAt.UTC(),
		Text:       postText(c.Node),
		Author:     postAuthor(c.Node),
		PostedAt:   postTime(c.Node),
		MediaURLs:  postMedia(c.Node),
		Replies:    postCount(c.Node, "reply"),
		Reposts:    postCount(c.Node, "retweet"),
		Likes:      postCount(c.Node, "like"),
	}

	if c.Column != nil {
		rec.ColumnTitle = c.Column.Title
		rec.ColumnID = c.Column.ID
		rec.ColumnPosition = c.Column.Position
	}

	rec.ID = postID(c.Node)
	if rec.ID == "" {
		rec.ID = SynthesizeID(rec.PostedAt, rec.ColumnID, rec.Text)
	}

	return rec
}

func postText(s *goquery.Selection) string {
	for _, sel := range []string{`[data-testid="tweetText"]`, `.tweet-text`, `.post-text`, `p`} {
		if text := normalizeText(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return normalizeText(s.Text())
}

func postAuthor(s *goquery.Selection) string {
	for _, sel := range []string{`[data-testid="User-Name"] span`, `.fullname`, `.username`, `[data-name]`} {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if name, ok := found.Attr("data-name"); ok && name != "" {
			return name
		}
		if name := normalizeText(found.Text()); name != "" {
			return name
		}
	}
	return ""
}

func postTime(s *goquery.Selection) time.Time {
	datetime, ok := s.Find("time").First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(datetime)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func postID(s *goquery.Selection) string {
	for _, attr := range []string{"data-tweet-id", "data-item-id", "data-key"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}

	var id string
	s.Find(`a[href*="/status/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := statusIDPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func postMedia(s *goquery.Selection) []string {
	var urls []string
	seen := make(map[string]bool)
	s.Find(`[data-testid="tweetPhoto"] img, .media img, video source, video`).Each(func(_ int, m *goquery.Selection) {
		src, ok := m.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if !seen[src] {
			seen[src] = true
			urls = append(urls, src)
		}
	})
	return urls
}

// postCount reads an engagement counter, accepting "1,234", "1.2K", "3M".
func postCount(s *goquery.Selection, action string) int {
	label := s.Find(`[data-testid="` + action + `"]`).First()
	if label.Length() == 0 {
		label = s.Find(`.` + action + `-count`).First()
	}
	if label.Length() == 0 {
		return 0
	}
	return parseCount(label.Text())
}

func parseCount(raw string) int {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0
	}
	// The counter may share its container with a label, keep the first token
	// that looks numeric.
	for _, field := range strings.Fields(text) {
		if n, ok := parseCountToken(field); ok {
			return n
		}
	}
	return 0
}

func parseCountToken(token string) (int, bool) {
	token = strings.ReplaceAll(token, ",", "")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(token, "K"), strings.HasSuffix(token, "k"):
		multiplier = 1_000
		token = token[:len(token)-1]
	case strings.HasSuffix(token, "M"), strings.HasSuffix(token, "m"):
		multiplier = 1_000_000
		token = token[:len(token)-1]
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f * multiplier), true
}
