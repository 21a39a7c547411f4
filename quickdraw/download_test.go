package quickdraw

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// quickdrawStub serves a category list and per-category npy files the way
// the public buckets do: remote filenames use spaces, not underscores.
type quickdrawStub struct {
	listing string
	files   map[string][]byte // keyed by remote filename, e.g. "alarm clock.npy"
	fetches atomic.Int32
}

func (s *quickdrawStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/categories.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(s.listing))
	})
	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		body, ok := s.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.fetches.Add(1)
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (s *quickdrawStub) options(srv *httptest.Server) DownloadOptions {
	return DownloadOptions{
		BaseURL:       srv.URL + "/data/",
		CategoriesURL: srv.URL + "/categories.txt",
	}
}

func TestCategoriesCanonicalForm(t *testing.T) {
	stub := &quickdrawStub{listing: "zebra\nalarm clock\n\napple\nzebra\n"}
	srv := stub.server(t)

	names, err := Categories(srv.URL + "/categories.txt")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	want := []string{"alarm_clock", "apple", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestDownloadFetchesAllCategories(t *testing.T) {
	stub := &quickdrawStub{
		listing: "alarm clock\nzebra\napple\n",
		files: map[string][]byte{
			"alarm clock.npy": uint8NPY(t, 4, ImageBytes, func(int) byte { return 1 }),
			"apple.npy":       uint8NPY(t, 4, ImageBytes, func(int) byte { return 2 }),
			"zebra.npy":       uint8NPY(t, 4, ImageBytes, func(int) byte { return 3 }),
		},
	}
	srv := stub.server(t)
	dir := t.TempDir()

	names, err := Download(dir, stub.options(srv))
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("got %d names, want 3", len(names))
	}
	for _, name := range []string{"alarm_clock", "apple", "zebra"} {
		if _, err := os.Stat(filepath.Join(dir, name+".npy")); err != nil {
			t.Fatalf("missing downloaded file for %s: %v", name, err)
		}
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	stub := &quickdrawStub{
		listing: "apple\n",
		files:   map[string][]byte{"apple.npy": uint8NPY(t, 2, ImageBytes, func(int) byte { return 1 })},
	}
	srv := stub.server(t)
	dir := t.TempDir()

	if _, err := Download(dir, stub.options(srv)); err != nil {
		t.Fatalf("first Download failed: %v", err)
	}
	if got := stub.fetches.Load(); got != 1 {
		t.Fatalf("first Download made %d fetches, want 1", got)
	}
	if _, err := Download(dir, stub.options(srv)); err != nil {
		t.Fatalf("second Download failed: %v", err)
	}
	if got := stub.fetches.Load(); got != 1 {
		t.Fatalf("second Download re-fetched: %d fetches total, want 1", got)
	}
}

func TestDownloadMaxCategories(t *testing.T) {
	stub := &quickdrawStub{
		listing: "cat\napple\nbanana\n",
		files: map[string][]byte{
			"apple.npy":  uint8NPY(t, 2, ImageBytes, func(int) byte { return 1 }),
			"banana.npy": uint8NPY(t, 2, ImageBytes, func(int) byte { return 2 }),
		},
	}
	srv := stub.server(t)
	dir := t.TempDir()

	opts := stub.options(srv)
	opts.MaxCategories = 2
	names, err := Download(dir, opts)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	// The cap applies after sorting, so "cat" falls off the end.
	if len(names) != 2 || names[0] != "apple" || names[1] != "banana" {
		t.Fatalf("got %v, want [apple banana]", names)
	}
}

func TestDownloadAbortsOnFirstFailure(t *testing.T) {
	stub := &quickdrawStub{
		listing: "apple\nbanana\n",
		files:   map[string][]byte{"banana.npy": uint8NPY(t, 2, ImageBytes, func(int) byte { return 1 })},
	}
	srv := stub.server(t)

	if _, err := Download(t.TempDir(), stub.options(srv)); err == nil {
		t.Fatal("expected an error when a category file is missing remotely")
	}
}

func TestDownloadThenLoadRoundTrip(t *testing.T) {
	const rows = 9
	stub := &quickdrawStub{
		files: map[string][]byte{"apple.npy": uint8NPY(t, rows, ImageBytes, func(r int) byte { return byte(r) })},
	}
	srv := stub.server(t)
	dir := t.TempDir()

	opts := stub.options(srv)
	opts.Categories = []string{"apple"}
	if _, err := Download(dir, opts); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	snap, err := Load(dir, rows+10) // cap above the file length
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.NumRows() != rows {
		t.Fatalf("round trip: NumRows = %d, want %d", snap.NumRows(), rows)
	}
	if len(snap.Names) != 1 || snap.Names[0] != "apple" {
		t.Fatalf("round trip names = %v, want [apple]", snap.Names)
	}
}
