package graph

import (
	"sort"

	"github.com/elliotchance/orderedmap/v2"
)

// levels assigns each table its level in the foreign-key chain once the
// cycles in acyclic.Broken are ignored.
//
// Every table starts at level 1 and a table that references a table at
// level L is raised to L+1 unless it already sits at an equal or greater
// level. Relaxing in drain order visits every referenced table before its
// dependents, so one pass suffices and no level exceeds the table count.
//
// The returned map preserves node insertion order.
func (g *Graph) levels(acyclic *Acyclic) *orderedmap.OrderedMap[string, int] {
	levels := orderedmap.NewOrderedMap[string, int]()
	for _, name := range g.AllNodes() {
		levels.Set(name, 1)
	}

	for _, source := range acyclic.Order {
		sourceLevel, _ := levels.Get(source)
		for _, tbl := range g.GetChildren(source) {
			if acyclic.IsBroken(source, tbl) {
				continue
			}
			if current, _ := levels.Get(tbl); current < sourceLevel+1 {
				levels.Set(tbl, sourceLevel+1)
			}
		}
	}

	return levels
}

func (g *Graph) deletionOrder(acyclic *Acyclic) []string {
	levels := g.levels(acyclic)

	order := make([]string, 0, levels.Len())
	for el := levels.Front(); el != nil; el = el.Next() {
		order = append(order, el.Key)
	}

	sort.SliceStable(order, func(i, j int) bool {
		li, _ := levels.Get(order[i])
		lj, _ := levels.Get(order[j])
		return li > lj
	})

	return order
}

// DeletionOrder returns every table sorted by level, highest first, so that
// a table is emptied before the tables it references. Cycles are broken
// first (see BreakCycles); the dropped edges are returned and are the only
// references the order may violate. Tables on the same level have no
// defined relative order.
func (g *Graph) DeletionOrder() ([]string, []Edge) {
	acyclic := g.BreakCycles()
	return g.deletionOrder(acyclic), acyclic.Broken
}
