package store

import (
	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

// Config is the decoded form of config.toml: default criteria, trusted
// imports, per-package policy, and exemptions.
type Config struct {
	DefaultCriteria []audit.CriteriaName
	Imports         map[string]audit.Import
	Policy          map[audit.PackageName]audit.Policy
	Exemptions      map[audit.PackageName][]audit.Exemption
}

func configFromRaw(r rawConfig) (Config, error) {
	c := Config{
		Imports:    map[string]audit.Import{},
		Policy:     map[audit.PackageName]audit.Policy{},
		Exemptions: map[audit.PackageName][]audit.Exemption{},
	}
	for _, s := range r.DefaultCriteria {
		c.DefaultCriteria = append(c.DefaultCriteria, audit.CriteriaName(s))
	}
	for name, ri := range r.Imports {
		imp := audit.Import{Name: name, URL: ri.URL}
		for _, e := range ri.Exclude {
			imp.Exclude = append(imp.Exclude, audit.PackageName(e))
		}
		for _, m := range ri.CriteriaMap {
			mapping := audit.CriteriaMapping{Ours: audit.CriteriaName(m.Ours)}
			for _, t := range m.Theirs {
				mapping.Theirs = append(mapping.Theirs, audit.CriteriaName(t))
			}
			imp.CriteriaMap = append(imp.CriteriaMap, mapping)
		}
		c.Imports[name] = imp
	}
	for pkg, rp := range r.Policy {
		p := audit.Policy{AuditAsCratesIO: rp.AuditAsCratesIO}
		p.Criteria = rp.Criteria.criteriaNames()
		p.DevCriteria = rp.DevCriteria.criteriaNames()
		if len(rp.DependencyCriteria) > 0 {
			p.DependencyCriteria = audit.DependencyCriteria{}
			for dep, crit := range rp.DependencyCriteria {
				var names []audit.CriteriaName
				for _, cr := range crit {
					names = append(names, audit.CriteriaName(cr))
				}
				p.DependencyCriteria[audit.PackageName(dep)] = names
			}
		}
		c.Policy[audit.PackageName(pkg)] = p
	}

	// Spec §6: `unaudited` is accepted as a legacy alias for `exemptions`,
	// read but, per the open-question decision recorded in DESIGN.md,
	// never written back.
	exemptionSrc := r.Exemptions
	if len(exemptionSrc) == 0 && len(r.Unaudited) > 0 {
		exemptionSrc = r.Unaudited
	}
	for pkg, exs := range exemptionSrc {
		for _, re := range exs {
			v, err := audit.ParseVersion(re.Version)
			if err != nil {
				return Config{}, &audit.ParseError{File: "config.toml", Err: errors.Wrapf(err, "exemption version for %s", pkg)}
			}
			suggest := true
			if re.Suggest != nil {
				suggest = *re.Suggest
			}
			c.Exemptions[audit.PackageName(pkg)] = append(c.Exemptions[audit.PackageName(pkg)], audit.Exemption{
				Version:  v,
				Criteria: re.Criteria.criteriaNames(),
				Suggest:  suggest,
				Notes:    re.Notes,
			})
		}
	}
	return c, nil
}

func configToRaw(c Config) rawConfig {
	r := rawConfig{
		Imports:    map[string]rawImport{},
		Policy:     map[string]rawPolicy{},
		Exemptions: map[string][]rawExemption{},
	}
	for _, n := range c.DefaultCriteria {
		r.DefaultCriteria = append(r.DefaultCriteria, string(n))
	}
	for name, imp := range c.Imports {
		ri := rawImport{URL: imp.URL}
		for _, e := range imp.Exclude {
			ri.Exclude = append(ri.Exclude, string(e))
		}
		for _, m := range imp.CriteriaMap {
			rm := rawCriteriaMap{Ours: string(m.Ours)}
			for _, t := range m.Theirs {
				rm.Theirs = append(rm.Theirs, string(t))
			}
			ri.CriteriaMap = append(ri.CriteriaMap, rm)
		}
		r.Imports[name] = ri
	}
	for pkg, p := range c.Policy {
		rp := rawPolicy{AuditAsCratesIO: p.AuditAsCratesIO, Criteria: criteriaFieldOf(p.Criteria), DevCriteria: criteriaFieldOf(p.DevCriteria)}
		if len(p.DependencyCriteria) > 0 {
			rp.DependencyCriteria = map[string][]string{}
			for dep, crit := range p.DependencyCriteria {
				var names []string
				for _, c := range crit {
					names = append(names, string(c))
				}
				rp.DependencyCriteria[string(dep)] = names
			}
		}
		r.Policy[string(pkg)] = rp
	}
	for pkg, exs := range c.Exemptions {
		for _, e := range exs {
			r.Exemptions[string(pkg)] = append(r.Exemptions[string(pkg)], rawExemption{
				Version:  e.Version.String(),
				Criteria: criteriaFieldOf(e.Criteria),
				Suggest:  boolPtr(e.Suggest),
				Notes:    e.Notes,
			})
		}
	}
	return r
}

// AuditsFile is the decoded form of audits.toml (and, per source, of
// imports-lock.toml).
type AuditsFile struct {
	Criteria map[audit.CriteriaName]audit.CriteriaEntry
	Audits   map[audit.PackageName][]audit.AuditEntry
}

func auditsFileFromRaw(r rawAuditsFile) (AuditsFile, error) {
	f := AuditsFile{
		Criteria: map[audit.CriteriaName]audit.CriteriaEntry{},
		Audits:   map[audit.PackageName][]audit.AuditEntry{},
	}
	for name, rc := range r.Criteria {
		entry := audit.CriteriaEntry{Description: rc.Description, DescriptionURL: rc.DescriptionURL, AggregatedFrom: rc.AggregatedFrom}
		for _, i := range rc.Implies {
			entry.Implies = append(entry.Implies, audit.CriteriaName(i))
		}
		f.Criteria[audit.CriteriaName(name)] = entry
	}
	for pkg, entries := range r.Audits {
		for _, re := range entries {
			e, err := auditEntryFromRaw(re)
			if err != nil {
				return AuditsFile{}, &audit.ParseError{File: "audits.toml", Err: errors.Wrapf(err, "package %s", pkg)}
			}
			f.Audits[audit.PackageName(pkg)] = append(f.Audits[audit.PackageName(pkg)], e)
		}
	}
	return f, nil
}

func auditEntryFromRaw(re rawAuditEntry) (audit.AuditEntry, error) {
	e := audit.AuditEntry{
		Who:            re.Who,
		Criteria:       re.Criteria.criteriaNames(),
		Notes:          re.Notes,
		AggregatedFrom: re.AggregatedFrom,
	}
	switch {
	case re.Violation != "":
		req, err := audit.ParseVersionReq(re.Violation)
		if err != nil {
			return e, err
		}
		e.Kind = audit.KindViolation
		e.Violation = req
	case re.Delta != "":
		d, err := audit.ParseDelta(re.Delta)
		if err != nil {
			return e, err
		}
		e.Kind = audit.KindDelta
		e.Delta = d
	default:
		d, err := audit.ParseDelta(re.Version)
		if err != nil {
			return e, err
		}
		e.Kind = audit.KindFull
		e.Delta = d
	}
	return e, nil
}

func auditsFileToRaw(f AuditsFile) rawAuditsFile {
	r := rawAuditsFile{Criteria: map[string]rawCriteriaEntry{}, Audits: map[string][]rawAuditEntry{}}
	for name, entry := range f.Criteria {
		rc := rawCriteriaEntry{Description: entry.Description, DescriptionURL: entry.DescriptionURL, AggregatedFrom: entry.AggregatedFrom}
		for _, i := range entry.Implies {
			rc.Implies = append(rc.Implies, string(i))
		}
		r.Criteria[string(name)] = rc
	}
	for pkg, entries := range f.Audits {
		for _, e := range entries {
			r.Audits[string(pkg)] = append(r.Audits[string(pkg)], auditEntryToRaw(e))
		}
	}
	return r
}

func auditEntryToRaw(e audit.AuditEntry) rawAuditEntry {
	re := rawAuditEntry{Who: e.Who, Criteria: criteriaFieldOf(e.Criteria), Notes: e.Notes, AggregatedFrom: e.AggregatedFrom}
	switch e.Kind {
	case audit.KindViolation:
		re.Violation = e.Violation.String()
	case audit.KindDelta:
		re.Delta = e.Delta.String()
	default:
		re.Version = e.Delta.String()
	}
	return re
}
