// Package snapshot obtains a DOM snapshot of the timeline page. The extractor
// never does I/O itself; everything it sees comes through a Source.
package snapshot

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is one captured page state.
type Snapshot struct {
	Doc        *goquery.Document
	SourceURL  string
	CapturedAt time.Time
}

// Source yields the current state of the watched page.
type Source interface {
	Snapshot() (*Snapshot, error)
}

// HTTPSource fetches the page over HTTP on every capture.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Snapshot() (*Snapshot, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: fetch %s returned status %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to read response body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to parse HTML: %w", err)
	}

	return &Snapshot{Doc: doc, SourceURL: s.url, CapturedAt: time.Now().UTC()}, nil
}

// FileSource reads a saved HTML file, useful for replaying captures.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Snapshot() (*Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to parse %s: %w", s.path, err)
	}

	return &Snapshot{Doc: doc, SourceURL: "file://" + s.path, CapturedAt: time.Now().UTC()}, nil
}

// ForSource picks a Source for a config value: http(s) URLs fetch, anything
// else is treated as a local file path.
func ForSource(source string) Source {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewHTTPSource(source)
	}
	return NewFileSource(source)
}
