package cache

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

// csvBackend stores cache records as a flat delimited file with a url,blob
// header. Writes append; lookups are served from an in-memory map where the
// earliest record for a key wins, so duplicate rows are harmless.
type csvBackend struct {
	mu      sync.Mutex
	path    string // empty for the in-memory variant
	records map[string]string
	total   int64
}

// newCSVBackend opens or creates the delimited file at path. Without create,
// a missing file yields (nil, nil).
func newCSVBackend(path string, create bool) (Backend, error) {
	b := &csvBackend{path: path, records: make(map[string]string)}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := b.load(f); err != nil {
			return nil, err
		}
		return b, nil
	case os.IsNotExist(err) && create:
		if err := b.writeHeader(); err != nil {
			return nil, err
		}
		return b, nil
	case os.IsNotExist(err):
		return nil, nil
	default:
		return nil, eris.Wrapf(err, "cache: open csv %s", path)
	}
}

// newMemoryCSVBackend returns a csv backend with no on-disk file, used as
// the last resort when nothing can be created on disk.
func newMemoryCSVBackend() Backend {
	return &csvBackend{records: make(map[string]string)}
}

func (b *csvBackend) load(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header := true
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "cache: read csv %s", b.path)
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 2 {
			continue
		}
		b.total++
		if _, ok := b.records[rec[0]]; !ok {
			b.records[rec[0]] = rec[1]
		}
	}
}

func (b *csvBackend) writeHeader() error {
	f, err := os.Create(b.path)
	if err != nil {
		return eris.Wrapf(err, "cache: create csv %s", b.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"url", "blob"}); err != nil {
		return eris.Wrap(err, "cache: write csv header")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "cache: flush csv header")
}

func (b *csvBackend) Get(_ context.Context, url string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.records[url]
	return blob, ok, nil
}

func (b *csvBackend) Put(_ context.Context, url, blob string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return eris.Wrapf(err, "cache: append csv %s", b.path)
		}
		defer f.Close()

		w := csv.NewWriter(f)
		if err := w.Write([]string{url, blob}); err != nil {
			return eris.Wrap(err, "cache: write csv record")
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return eris.Wrap(err, "cache: flush csv record")
		}
	}

	b.total++
	if _, ok := b.records[url]; !ok {
		b.records[url] = blob
	}
	return nil
}

func (b *csvBackend) Count(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, nil
}

func (b *csvBackend) Clear(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.total
	b.records = make(map[string]string)
	b.total = 0
	if b.path != "" {
		if err := b.writeHeader(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (b *csvBackend) Close() error { return nil }
