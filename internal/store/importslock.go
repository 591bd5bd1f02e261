package store

import (
	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

// ImportsLock is the decoded form of imports-lock.toml: one AuditsFile per
// trusted source, plus (outside the wire schema) the description text
// locked in at import time, used by the minimizer to detect upstream
// criteria-description churn (spec §4.7 rule 4).
type ImportsLock struct {
	Sources map[string]audit.SourceSnapshotLock
}

func importsLockFromRaw(r rawImportsLock) (ImportsLock, error) {
	il := ImportsLock{Sources: map[string]audit.SourceSnapshotLock{}}
	for name, raf := range r.Audits {
		f, err := auditsFileFromRaw(raf)
		if err != nil {
			return ImportsLock{}, errors.Wrapf(err, "source %s", name)
		}
		descs := map[audit.CriteriaName]string{}
		for cn, entry := range f.Criteria {
			descs[cn] = entry.Description
		}
		il.Sources[name] = audit.SourceSnapshotLock{
			Audits:       f.Audits,
			Criteria:     f.Criteria,
			Descriptions: descs,
		}
	}
	return il, nil
}

func importsLockToRaw(il ImportsLock) rawImportsLock {
	r := rawImportsLock{Audits: map[string]rawAuditsFile{}}
	for name, lock := range il.Sources {
		r.Audits[name] = auditsFileToRaw(AuditsFile{Criteria: lock.Criteria, Audits: lock.Audits})
	}
	return r
}

// diffCache is the decoded, tag-stripped form of diff-cache.toml (spec §6):
// `{ diffs: map<pkg, map<Delta, DiffStat>> }` under version tag "2". Any
// other tag, or a missing file, is treated as empty and silently rebuilt,
// mirroring golang-dep's source_cache_bolt.go epoch-invalidation approach to
// stale on-disk cache formats.
type diffCache struct {
	Diffs map[audit.PackageName]map[string]audit.DiffStat
}

type rawDiffCache struct {
	Tag   string                        `toml:"tag"`
	Diffs map[string]map[string]rawDiff `toml:"diffs"`
}

type rawDiff struct {
	Insertions   int `toml:"insertions"`
	Deletions    int `toml:"deletions"`
	FilesChanged int `toml:"files-changed"`
}

const diffCacheTag = "2"

func diffCacheFromRaw(r rawDiffCache) diffCache {
	dc := diffCache{Diffs: map[audit.PackageName]map[string]audit.DiffStat{}}
	if r.Tag != diffCacheTag {
		return dc
	}
	for pkg, byDelta := range r.Diffs {
		m := map[string]audit.DiffStat{}
		for delta, rd := range byDelta {
			m[delta] = audit.DiffStat{Insertions: rd.Insertions, Deletions: rd.Deletions, FilesChanged: rd.FilesChanged}
		}
		dc.Diffs[audit.PackageName(pkg)] = m
	}
	return dc
}

func diffCacheToRaw(dc diffCache) rawDiffCache {
	r := rawDiffCache{Tag: diffCacheTag, Diffs: map[string]map[string]rawDiff{}}
	for pkg, byDelta := range dc.Diffs {
		m := map[string]rawDiff{}
		for delta, d := range byDelta {
			m[delta] = rawDiff{Insertions: d.Insertions, Deletions: d.Deletions, FilesChanged: d.FilesChanged}
		}
		r.Diffs[string(pkg)] = m
	}
	return r
}
