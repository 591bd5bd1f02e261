package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/auditgraph/vet/internal/audit"
)

type countingFetcher struct {
	calls int32
}

func (f *countingFetcher) Fetch(ctx context.Context, pkg audit.PackageName, ver audit.Version) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return fmt.Sprintf("/tmp/%s@%s", pkg, ver), nil
}

type countingDiffer struct {
	calls int32
}

func (d *countingDiffer) Diff(ctx context.Context, a, b string) (audit.DiffStat, error) {
	atomic.AddInt32(&d.calls, 1)
	return audit.DiffStat{Insertions: 3, Deletions: 1, FilesChanged: 1}, nil
}

func newTestCache(t *testing.T, fetcher Fetcher, differ Differ, epoch int64) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), epoch, fetcher, differ, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFetchMemoizesAndCoalesces(t *testing.T) {
	f := &countingFetcher{}
	c := newTestCache(t, f, &countingDiffer{}, 0)

	v := audit.MustParseVersion("1.0.0")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), "third-party1", v); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if f.calls != 1 {
		t.Fatalf("expected exactly one underlying fetch for concurrent identical requests, got %d", f.calls)
	}

	if _, err := c.Fetch(context.Background(), "third-party1", v); err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Fatalf("expected a cache hit on a subsequent call, got %d total fetches", f.calls)
	}
}

func TestDiffStatMemoizes(t *testing.T) {
	d := &countingDiffer{}
	c := newTestCache(t, &countingFetcher{}, d, 0)

	v := audit.MustParseVersion("1.0.0")
	for i := 0; i < 5; i++ {
		if _, err := c.DiffStat(context.Background(), "third-party1", audit.Root, v, "/a", "/b"); err != nil {
			t.Fatal(err)
		}
	}
	if d.calls != 1 {
		t.Fatalf("expected exactly one diff computation, got %d", d.calls)
	}
}

func TestFetchEpochInvalidatesStaleEntry(t *testing.T) {
	f := &countingFetcher{}
	dir := t.TempDir()
	c1, err := Open(dir, 0, f, &countingDiffer{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	v := audit.MustParseVersion("1.0.0")
	if _, err := c1.Fetch(context.Background(), "third-party1", v); err != nil {
		t.Fatal(err)
	}
	c1.Close()

	// A future epoch (newer than the entry's write time) treats the
	// existing entry as stale and re-fetches.
	c2, err := Open(dir, 1<<62, f, &countingDiffer{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if _, err := c2.Fetch(context.Background(), "third-party1", v); err != nil {
		t.Fatal(err)
	}
	if f.calls != 2 {
		t.Fatalf("expected the stale entry to trigger a second fetch, got %d calls", f.calls)
	}
}
