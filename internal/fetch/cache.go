// Package fetch implements the FetchCache boundary described in the spec:
// fetch(pkg, ver) -> path and diffstat(a, b) -> DiffStat, memoized and
// persisted across runs. The actual network fetch and line-diffing are
// pluggable (Fetcher/Differ) since the spec treats "package source
// fetching, tarball unpacking, and diff-line counting" as an external
// collaborator described only by its interface to the core; what belongs
// here, and is grounded in the teacher, is the caching, concurrency, and
// on-disk persistence discipline around those operations.
package fetch

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/auditgraph/vet/internal/audit"
)

// Fetcher retrieves a package version's unpacked source tree, returning its
// local path. Implementations are supplied by the driver (cmd/vet); the
// cache only guarantees each (pkg, ver) is fetched at most once per run per
// cache miss.
type Fetcher interface {
	Fetch(ctx context.Context, pkg audit.PackageName, ver audit.Version) (path string, err error)
}

// Differ computes a line-level diffstat between two fetched trees.
type Differ interface {
	Diff(ctx context.Context, pathA, pathB string) (audit.DiffStat, error)
}

// DefaultDiffPermits is the default width of the diff concurrency semaphore
// (spec §5).
const DefaultDiffPermits = 40

// Cache is the process-lifetime FetchCache: a persistent BoltDB-backed
// memoization layer (grounded in golang-dep's internal/gps/source_cache_bolt.go
// boltCache) in front of a pluggable Fetcher/Differ, with singleflight
// request coalescing and a bounded-concurrency diff semaphore.
type Cache struct {
	db     *bolt.DB
	epoch  int64
	logger *log.Logger
	flock  *flock.Flock

	fetcher Fetcher
	differ  Differ

	diffSem *semaphore.Weighted

	fetchGroup singleflight.Group
	diffGroup  singleflight.Group
}

var (
	bucketFetch = []byte("fetch")
	bucketDiff  = []byte("diff")
)

// Open creates (or reuses) a BoltDB cache file under cacheDir, and takes an
// exclusive process-scoped flock over the cache directory for the lifetime
// of the run, per spec §5. epoch bounds the age of cache entries the getters
// will return, the same invalidation knob as the teacher's boltCache.
func Open(cacheDir string, epoch int64, fetcher Fetcher, differ Differ, logger *log.Logger) (*Cache, error) {
	if err := ensureDir(cacheDir); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(cacheDir, ".fetch-lock")
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, &audit.LockError{Path: lockPath, Err: err}
	}
	if !ok {
		return nil, &audit.LockError{Path: lockPath, Err: errors.New("fetch cache is locked by another process")}
	}

	dbPath := filepath.Join(cacheDir, "fetch.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		fl.Unlock()
		return nil, &audit.CacheError{Op: "open", Err: errors.Wrapf(err, "opening fetch cache %q", dbPath)}
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFetch); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketDiff)
		return err
	}); err != nil {
		db.Close()
		fl.Unlock()
		return nil, &audit.CacheError{Op: "init", Err: err}
	}

	return &Cache{
		db:      db,
		epoch:   epoch,
		logger:  logger,
		flock:   fl,
		fetcher: fetcher,
		differ:  differ,
		diffSem: semaphore.NewWeighted(DefaultDiffPermits),
	}, nil
}

// Close flushes and closes the BoltDB file and releases the cache
// directory's flock, mirroring the teacher's boltCache.close() plus
// cargo-vet storage.rs's flush-on-drop for its local cache.
func (c *Cache) Close() error {
	var errs []error
	if err := c.db.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "closing fetch cache"))
	}
	if err := c.flock.Unlock(); err != nil {
		errs = append(errs, errors.Wrap(err, "releasing fetch cache lock"))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Fetch returns the local path for pkg@ver, fetching it at most once: a
// cache hit within epoch is returned directly; concurrent misses for the
// same key share one in-flight Fetcher call via singleflight.
func (c *Cache) Fetch(ctx context.Context, pkg audit.PackageName, ver audit.Version) (string, error) {
	key := fetchKey(pkg, ver)
	if path, ok := c.getFetch(key); ok {
		return path, nil
	}

	v, err, _ := c.fetchGroup.Do(key, func() (interface{}, error) {
		if path, ok := c.getFetch(key); ok {
			return path, nil
		}
		path, ferr := c.fetcher.Fetch(ctx, pkg, ver)
		if ferr != nil {
			return "", &audit.FetchError{Package: pkg, Version: ver, Err: ferr}
		}
		if err := c.putFetch(key, path); err != nil {
			c.logger.Println(errors.Wrapf(err, "caching fetch result for %s", key))
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DiffStat returns the diffstat between two fetched trees for a package's
// delta, bounding concurrent Differ calls with the diff semaphore and
// coalescing concurrent callers for the same delta.
func (c *Cache) DiffStat(ctx context.Context, pkg audit.PackageName, from, to audit.Version, pathFrom, pathTo string) (audit.DiffStat, error) {
	key := diffKey(pkg, from, to)
	if d, ok := c.getDiff(key); ok {
		return d, nil
	}

	v, err, _ := c.diffGroup.Do(key, func() (interface{}, error) {
		if d, ok := c.getDiff(key); ok {
			return d, nil
		}
		if err := c.diffSem.Acquire(ctx, 1); err != nil {
			return audit.DiffStat{}, err
		}
		defer c.diffSem.Release(1)

		d, derr := c.differ.Diff(ctx, pathFrom, pathTo)
		if derr != nil {
			return audit.DiffStat{}, &audit.DiffError{Package: pkg, From: from, To: to, Err: derr}
		}
		if err := c.putDiff(key, d); err != nil {
			c.logger.Println(errors.Wrapf(err, "caching diffstat for %s", key))
		}
		return d, nil
	})
	if err != nil {
		return audit.DiffStat{}, err
	}
	return v.(audit.DiffStat), nil
}

func fetchKey(pkg audit.PackageName, ver audit.Version) string {
	return string(pkg) + "@" + ver.String()
}

func diffKey(pkg audit.PackageName, from, to audit.Version) string {
	return string(pkg) + "|" + audit.Delta{From: versionPtr(from), To: to}.String()
}

func versionPtr(v audit.Version) *audit.Version {
	if v.IsRoot() {
		return nil
	}
	return &v
}
