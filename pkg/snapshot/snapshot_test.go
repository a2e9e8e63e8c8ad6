package snapshot

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestForSource(t *testing.T) {
	if _, ok := ForSource("https://deck.example/home").(*HTTPSource); !ok {
		t.Error("https URL should yield an HTTPSource")
	}
	if _, ok := ForSource("http://deck.example/home").(*HTTPSource); !ok {
		t.Error("http URL should yield an HTTPSource")
	}
	if _, ok := ForSource("/var/saved/page.html").(*FileSource); !ok {
		t.Error("file path should yield a FileSource")
	}
}

func TestHTTPSource_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Deck</title></head><body><article>post</article></body></html>`))
	}))
	defer server.Close()

	snap, err := NewHTTPSource(server.URL).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.SourceURL != server.URL {
		t.Errorf("SourceURL = %q", snap.SourceURL)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt must be set")
	}
	if snap.Doc.Find("article").Length() != 1 {
		t.Error("document not parsed")
	}
}

func TestHTTPSource_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewHTTPSource(server.URL).Snapshot(); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFileSource_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(`<html><body><article>saved post</article></body></html>`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := NewFileSource(path).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.SourceURL != "file://"+path {
		t.Errorf("SourceURL = %q", snap.SourceURL)
	}
	if snap.Doc.Find("article").Text() != "saved post" {
		t.Error("document not parsed")
	}
}

func TestFileSource_Missing(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "nope.html")).Snapshot(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
