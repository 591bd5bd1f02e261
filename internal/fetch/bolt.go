package fetch

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/boltdb/bolt"

	"github.com/auditgraph/vet/internal/audit"
)

func ensureDir(dir string) error {
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &audit.CacheError{Op: "init", Err: os.ErrInvalid}
	}
	return nil
}

// Fetch cache entries are stored as "<timestamp>\x00<path>" so an entry
// older than the cache's epoch is treated as a miss, the same
// timestamp-then-value layout as the teacher's cacheTimestampedKey scheme,
// simplified since there's no need for a separate sub-bucket per entry.
func (c *Cache) getFetch(key string) (string, bool) {
	var path string
	var found bool
	c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFetch)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		ts, rest, ok := splitTimestamped(v)
		if !ok || ts < c.epoch {
			return nil
		}
		path = string(rest)
		found = true
		return nil
	})
	return path, found
}

func (c *Cache) putFetch(key, path string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFetch)
		return b.Put([]byte(key), timestamped(time.Now().Unix(), []byte(path)))
	})
}

func (c *Cache) getDiff(key string) (audit.DiffStat, bool) {
	var d audit.DiffStat
	var found bool
	c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiff)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		ts, rest, ok := splitTimestamped(v)
		if !ok || ts < c.epoch {
			return nil
		}
		decoded, ok := decodeDiffStat(rest)
		if !ok {
			return nil
		}
		d = decoded
		found = true
		return nil
	})
	return d, found
}

func (c *Cache) putDiff(key string, d audit.DiffStat) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiff)
		return b.Put([]byte(key), timestamped(time.Now().Unix(), encodeDiffStat(d)))
	})
}

func timestamped(writtenAt int64, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(out[:8], uint64(writtenAt))
	copy(out[8:], payload)
	return out
}

func splitTimestamped(v []byte) (ts int64, rest []byte, ok bool) {
	if len(v) < 8 {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(v[:8])), v[8:], true
}

func encodeDiffStat(d audit.DiffStat) []byte {
	out := make([]byte, 24)
	binary.BigEndian.PutUint64(out[0:8], uint64(d.Insertions))
	binary.BigEndian.PutUint64(out[8:16], uint64(d.Deletions))
	binary.BigEndian.PutUint64(out[16:24], uint64(d.FilesChanged))
	return out
}

func decodeDiffStat(b []byte) (audit.DiffStat, bool) {
	if len(b) < 24 {
		return audit.DiffStat{}, false
	}
	return audit.DiffStat{
		Insertions:   int(binary.BigEndian.Uint64(b[0:8])),
		Deletions:    int(binary.BigEndian.Uint64(b[8:16])),
		FilesChanged: int(binary.BigEndian.Uint64(b[16:24])),
	}, true
}
