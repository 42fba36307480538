package graph

import (
	"fmt"
)

// ForeignKeyRef is a foreign key as reported by the database catalog.
type ForeignKeyRef struct {
	Table           string // Table holding the foreign key
	ReferencedTable string // Table the key points at
	Constraint      string
}

// Builder constructs a dependency graph from catalog listings.
type Builder struct {
	schema  string
	tables  []string
	fks     []ForeignKeyRef
	skipped []ForeignKeyRef
}

// NewBuilder creates a new graph builder for tables of one schema.
func NewBuilder(schema string) *Builder {
	return &Builder{schema: schema}
}

// AddTable registers a table.
func (b *Builder) AddTable(name string) *Builder {
	b.tables = append(b.tables, name)
	return b
}

// AddForeignKey registers a foreign key from table to referenced.
func (b *Builder) AddForeignKey(fk ForeignKeyRef) *Builder {
	b.fks = append(b.fks, fk)
	return b
}

// Build constructs the graph. Foreign keys whose endpoints are not among
// the registered tables (other schemas, views) are left out and reported
// by Skipped.
func (b *Builder) Build() (*Graph, error) {
	g := NewGraph()

	for _, name := range b.tables {
		if name == "" {
			return nil, fmt.Errorf("table name is empty in schema %q", b.schema)
		}
		if g.HasNode(name) {
			return nil, fmt.Errorf("duplicate table %q in schema %q", name, b.schema)
		}
		g.AddNode(name, &Node{Name: name, Schema: b.schema})
	}

	b.skipped = nil
	for _, fk := range b.fks {
		if !g.HasNode(fk.Table) || !g.HasNode(fk.ReferencedTable) {
			b.skipped = append(b.skipped, fk)
			continue
		}
		g.AddEdgeWithMeta(fk.ReferencedTable, fk.Table, fk.Constraint)
	}

	return g, nil
}

// Skipped returns the foreign keys the last Build call left out.
func (b *Builder) Skipped() []ForeignKeyRef {
	return b.skipped
}
