package store

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// writeFileAtomic writes data to path by first writing to a sibling temp
// file in the same directory, then renaming it into place, so a crash mid-
// write never leaves path truncated or half-written. This is the same
// rename-into-place discipline golang-dep's txn_writer.go uses for
// manifest/lock persistence, reduced to a single file since the store has
// no vendor tree to stage alongside it.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, werr := tmp.Write(data); werr != nil {
		tmp.Close()
		return errors.Wrapf(werr, "writing temp file for %s", path)
	}
	if cerr := tmp.Close(); cerr != nil {
		return errors.Wrapf(cerr, "closing temp file for %s", path)
	}

	if rerr := renameWithFallback(tmpPath, path); rerr != nil {
		return errors.Wrapf(rerr, "renaming into place %s", path)
	}
	return nil
}

// renameWithFallback mirrors golang-dep's fs.go helper: os.Rename first,
// falling back to a copy when src and dest straddle a device boundary
// (common for tmpfs-backed os.TempDir on Linux).
func renameWithFallback(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if cerr := copyFile(src, dest); cerr != nil {
		return cerr
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	lerr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	if runtime.GOOS == "windows" {
		return false
	}
	return lerr.Err != nil && lerr.Err.Error() == "invalid cross-device link"
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
