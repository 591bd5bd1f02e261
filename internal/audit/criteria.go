package audit

import (
	"sort"

	"github.com/pkg/errors"
)

// CriteriaName is an interned criterion identifier, e.g. "safe-to-deploy".
type CriteriaName string

// Built-in criteria. safe-to-deploy always implies safe-to-run.
const (
	SafeToDeploy CriteriaName = "safe-to-deploy"
	SafeToRun    CriteriaName = "safe-to-run"
)

// CriteriaEntry describes a declared criterion: its human-readable
// description (or a link to one) and the criteria it implies.
type CriteriaEntry struct {
	Description    string
	DescriptionURL string
	Implies        []CriteriaName
	AggregatedFrom []string
}

// CriteriaSet is a fixed-width bit vector over the criteria declared by a
// Lattice. The zero value is the empty set. Every set a Lattice hands back
// from Closure or SetOf is closed under implication; sets built by hand
// (e.g. from serialized audit entries before being passed through the
// lattice) are not assumed to be closed.
type CriteriaSet struct {
	bits uint64
}

// fullSet returns the set containing every criterion up to the lattice's
// supported width; it is the initial trust assigned to the root node.
func fullSet(n int) CriteriaSet {
	if n >= 64 {
		return CriteriaSet{bits: ^uint64(0)}
	}
	return CriteriaSet{bits: (uint64(1) << uint(n)) - 1}
}

func bit(i int) CriteriaSet { return CriteriaSet{bits: uint64(1) << uint(i)} }

// Union returns the union of s and o.
func (s CriteriaSet) Union(o CriteriaSet) CriteriaSet { return CriteriaSet{bits: s.bits | o.bits} }

// Intersect returns the intersection of s and o.
func (s CriteriaSet) Intersect(o CriteriaSet) CriteriaSet { return CriteriaSet{bits: s.bits & o.bits} }

// Subtract returns s with every bit also set in o cleared.
func (s CriteriaSet) Subtract(o CriteriaSet) CriteriaSet { return CriteriaSet{bits: s.bits &^ o.bits} }

// Subset reports whether every bit in s is also set in o (s ⊆ o).
func (s CriteriaSet) Subset(o CriteriaSet) bool { return s.bits&^o.bits == 0 }

// IsEmpty reports whether the set has no bits set.
func (s CriteriaSet) IsEmpty() bool { return s.bits == 0 }

// Equal reports whether s and o contain exactly the same criteria.
func (s CriteriaSet) Equal(o CriteriaSet) bool { return s.bits == o.bits }

// Intersects reports whether s and o share at least one criterion.
func (s CriteriaSet) Intersects(o CriteriaSet) bool { return s.bits&o.bits != 0 }

// Lattice assigns a stable bit index to every declared criterion (local and
// imported-and-translated) and precomputes the reflexive transitive closure
// of `implies` for each. Cycles in `implies` are permitted; they simply
// collapse into a single equivalence class whose members all close over
// one another.
type Lattice struct {
	names   []CriteriaName
	index   map[CriteriaName]int
	closure []CriteriaSet
}

// ErrUnknownCriteria is returned, wrapped with context, whenever a
// criterion name is referenced that was never declared.
var ErrUnknownCriteria = errors.New("unknown criteria")

// BuildLattice constructs a Lattice from the declared criteria entries,
// automatically adding the built-in safe-to-deploy/safe-to-run pair and the
// implication between them if not already present.
func BuildLattice(entries map[CriteriaName]CriteriaEntry) (*Lattice, error) {
	merged := make(map[CriteriaName]CriteriaEntry, len(entries)+2)
	for k, v := range entries {
		merged[k] = v
	}
	if _, ok := merged[SafeToRun]; !ok {
		merged[SafeToRun] = CriteriaEntry{}
	}
	if e, ok := merged[SafeToDeploy]; ok {
		if !containsCriteria(e.Implies, SafeToRun) {
			e.Implies = append(append([]CriteriaName{}, e.Implies...), SafeToRun)
			merged[SafeToDeploy] = e
		}
	} else {
		merged[SafeToDeploy] = CriteriaEntry{Implies: []CriteriaName{SafeToRun}}
	}

	names := make([]CriteriaName, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	l := &Lattice{
		index: make(map[CriteriaName]int, len(names)),
		names: names,
	}
	for i, n := range names {
		l.index[n] = i
	}

	// Validate all `implies` references exist before computing closures.
	for name, e := range merged {
		for _, imp := range e.Implies {
			if _, ok := l.index[imp]; !ok {
				return nil, errors.Wrapf(ErrUnknownCriteria, "criteria %q implies unknown %q", name, imp)
			}
		}
	}

	l.closure = make([]CriteriaSet, len(names))
	for i, n := range names {
		l.closure[i] = l.closureOf(n, merged, nil)
	}
	return l, nil
}

// closureOf computes the reflexive transitive closure of n's implications
// using an explicit worklist rather than recursion, so implication cycles
// terminate cleanly instead of overflowing the stack.
func (l *Lattice) closureOf(n CriteriaName, entries map[CriteriaName]CriteriaEntry, _ []CriteriaName) CriteriaSet {
	seen := map[CriteriaName]bool{n: true}
	work := []CriteriaName{n}
	set := bit(l.index[n])
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		for _, imp := range entries[cur].Implies {
			set = set.Union(bit(l.index[imp]))
			if !seen[imp] {
				seen[imp] = true
				work = append(work, imp)
			}
		}
	}
	return set
}

// Closure returns the reflexive transitive closure of name's implications.
func (l *Lattice) Closure(name CriteriaName) (CriteriaSet, error) {
	i, ok := l.index[name]
	if !ok {
		return CriteriaSet{}, errors.Wrapf(ErrUnknownCriteria, "%q", name)
	}
	return l.closure[i], nil
}

// SetOf returns the union of the closures of each named criterion.
func (l *Lattice) SetOf(names []CriteriaName) (CriteriaSet, error) {
	var out CriteriaSet
	for _, n := range names {
		c, err := l.Closure(n)
		if err != nil {
			return CriteriaSet{}, err
		}
		out = out.Union(c)
	}
	return out, nil
}

// Full returns the set of every declared criterion, used to seed the root
// node's reachable trust at the start of a search.
func (l *Lattice) Full() CriteriaSet { return fullSet(len(l.names)) }

// Names expands a CriteriaSet back into its declared criteria, in the
// lattice's canonical (sorted) order.
func (l *Lattice) Names(s CriteriaSet) []CriteriaName {
	var out []CriteriaName
	for i, n := range l.names {
		if s.bits&(uint64(1)<<uint(i)) != 0 {
			out = append(out, n)
		}
	}
	return out
}

func containsCriteria(list []CriteriaName, n CriteriaName) bool {
	for _, c := range list {
		if c == n {
			return true
		}
	}
	return false
}
