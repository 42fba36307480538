package cleaner

// ExclusionSet holds table names that must never be cleaned. Matching is
// exact and case-sensitive.
type ExclusionSet struct {
	names map[string]struct{}
}

// NewExclusionSet builds a set from names. Empty names are ignored.
func NewExclusionSet(names ...string) ExclusionSet {
	set := ExclusionSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		set.names[n] = struct{}{}
	}
	return set
}

// Contains reports whether name is excluded.
func (s ExclusionSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of excluded names.
func (s ExclusionSet) Len() int {
	return len(s.names)
}

// Apply returns tables minus the excluded ones, keeping their order.
func (s ExclusionSet) Apply(tables []Table) []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if s.Contains(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}
