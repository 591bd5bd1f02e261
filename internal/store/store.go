// Package store implements the on-disk side of the audit store: decoding
// and encoding config.toml, audits.toml, imports-lock.toml, and
// diff-cache.toml into the domain types in internal/audit, and persisting
// mutated results back atomically. It has no opinion on resolver semantics;
// callers in cmd/vet load a Store, hand its contents to internal/audit, and
// save back whatever the resolver returns.
package store

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

const (
	configFile      = "config.toml"
	auditsFile      = "audits.toml"
	importsLockFile = "imports-lock.toml"
	diffCacheFile   = "diff-cache.toml"
)

// Store is a loaded snapshot of one project's audit store directory.
type Store struct {
	Root        string
	Config      Config
	Audits      AuditsFile
	ImportsLock ImportsLock

	diffCache diffCache
}

// Load reads config.toml, audits.toml, imports-lock.toml and
// diff-cache.toml from root. A missing file decodes as empty; a diff cache
// that fails to decode is also treated as empty.
func Load(root string) (*Store, error) {
	s := &Store{Root: root}

	var rc rawConfig
	if err := decodeFile(filepath.Join(root, configFile), &rc); err != nil {
		return nil, err
	}
	cfg, err := configFromRaw(rc)
	if err != nil {
		return nil, err
	}
	s.Config = cfg

	var ra rawAuditsFile
	if err := decodeFile(filepath.Join(root, auditsFile), &ra); err != nil {
		return nil, err
	}
	af, err := auditsFileFromRaw(ra)
	if err != nil {
		return nil, err
	}
	s.Audits = af

	var ril rawImportsLock
	if err := decodeFile(filepath.Join(root, importsLockFile), &ril); err != nil {
		return nil, err
	}
	il, err := importsLockFromRaw(ril)
	if err != nil {
		return nil, err
	}
	s.ImportsLock = il

	var rdc rawDiffCache
	if err := decodeFile(filepath.Join(root, diffCacheFile), &rdc); err != nil {
		// A corrupt diff cache is never fatal: the spec calls for silently
		// rebuilding on any unrecognized shape.
		rdc = rawDiffCache{}
	}
	s.diffCache = diffCacheFromRaw(rdc)

	return s, nil
}

// DecodeAuditsFile parses raw audits.toml content (as fetched from a
// trusted import's source repository, not necessarily on disk in this
// store) into the domain AuditsFile shape. Exported for cmd/vet's imports
// minimizer driver, which needs to decode a foreign source's audits.toml
// the same way Load decodes the local one.
func DecodeAuditsFile(data []byte) (AuditsFile, error) {
	var ra rawAuditsFile
	if err := toml.Unmarshal(data, &ra); err != nil {
		return AuditsFile{}, &audit.ParseError{File: "audits.toml", Err: err}
	}
	return auditsFileFromRaw(ra)
}

func decodeFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &audit.ParseError{File: path, Err: err}
	}
	if err := toml.Unmarshal(data, into); err != nil {
		return &audit.ParseError{File: path, Err: err}
	}
	return nil
}

// DiffStat looks up a cached diffstat for a package's delta, reporting
// whether it was present.
func (s *Store) DiffStat(pkg audit.PackageName, from, to audit.Version) (audit.DiffStat, bool) {
	byDelta, ok := s.diffCache.Diffs[pkg]
	if !ok {
		return audit.DiffStat{}, false
	}
	key := audit.Delta{To: to}
	if !from.IsRoot() {
		f := from
		key.From = &f
	}
	d, ok := byDelta[key.String()]
	return d, ok
}

// PutDiffStat records a freshly computed diffstat for the next Save.
func (s *Store) PutDiffStat(pkg audit.PackageName, from, to audit.Version, d audit.DiffStat) {
	if s.diffCache.Diffs == nil {
		s.diffCache.Diffs = map[audit.PackageName]map[string]audit.DiffStat{}
	}
	if s.diffCache.Diffs[pkg] == nil {
		s.diffCache.Diffs[pkg] = map[string]audit.DiffStat{}
	}
	key := audit.Delta{To: to}
	if !from.IsRoot() {
		f := from
		key.From = &f
	}
	s.diffCache.Diffs[pkg][key.String()] = d
}

// PruneDiffCache drops every cached diffstat for a package not present in
// live, returning the number of package entries removed. Used by the gc
// command to keep diff-cache.toml from growing unbounded as dependencies
// are dropped from the project.
func (s *Store) PruneDiffCache(live map[audit.PackageName]bool) int {
	removed := 0
	for pkg := range s.diffCache.Diffs {
		if !live[pkg] {
			delete(s.diffCache.Diffs, pkg)
			removed++
		}
	}
	return removed
}

// Save persists Config, Audits, ImportsLock, and the diff cache back to
// root, each via an atomic rename-into-place write (txn_writer.go). Unlike
// golang-dep's SafeWriter, which stages every file in one shared temp dir
// so a partial manifest+lock+vendor write can be rolled back together, the
// four store files here are independent documents with no cross-file
// invariant to protect, so each is written and renamed on its own; a crash
// between two of them leaves the others exactly as they were.
func (s *Store) Save() error {
	if err := s.saveTOML(configFile, configToRaw(s.Config)); err != nil {
		return err
	}
	if err := s.saveTOML(auditsFile, auditsFileToRaw(s.Audits)); err != nil {
		return err
	}
	if err := s.saveTOML(importsLockFile, importsLockToRaw(s.ImportsLock)); err != nil {
		return err
	}
	if err := s.saveTOML(diffCacheFile, diffCacheToRaw(s.diffCache)); err != nil {
		return err
	}
	return nil
}

func (s *Store) saveTOML(name string, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return &audit.ParseError{File: name, Err: errors.Wrapf(err, "encoding %s", name)}
	}
	return writeFileAtomic(filepath.Join(s.Root, name), data)
}
