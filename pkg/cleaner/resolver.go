package cleaner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbsmedya/goclean/internal/graph"
	"github.com/dbsmedya/goclean/internal/logger"
)

// Resolver computes the order in which tables can be emptied without
// violating foreign keys.
type Resolver struct {
	exclusions ExclusionSet
	log        *logger.Logger
}

// NewResolver creates a resolver that leaves out the excluded tables.
func NewResolver(exclusions ExclusionSet, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{exclusions: exclusions, log: log}
}

// ResolveOrder lists every table of the current schema, dependents before
// the tables they reference. Circular keys are tolerated: each table still
// appears exactly once and the cycle is reported at warn level.
func (r *Resolver) ResolveOrder(ctx context.Context, conn Connection) ([]Table, error) {
	caps := conn.Capabilities()
	if !caps.DependencyIntrospection {
		return nil, unsupported("resolve deletion order", caps)
	}

	schema, err := conn.CurrentSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current schema: %w", err)
	}

	tables, err := conn.ListTables(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	fks, err := conn.ForeignKeys(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}

	g, err := r.buildGraph(schema, tables, fks)
	if err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		var cycleErr *graph.CycleError
		if errors.As(err, &cycleErr) {
			r.log.Warnw("foreign keys form a cycle, breaking it",
				"schema", schema,
				"cycle", cycleErr.Info.CyclePath,
				"tables", cycleErr.Info.CycleParticipants)
		}
	}

	order, broken := g.DeletionOrder()
	for _, e := range broken {
		constraint := ""
		if meta := g.GetEdgeMeta(e.From, e.To); meta != nil {
			constraint = meta.Constraint
		}
		r.log.Debugw("ignoring foreign key to break cycle",
			"table", e.To,
			"references", e.From,
			"constraint", constraint)
	}

	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	ordered := make([]Table, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, byName[name])
	}

	return r.exclusions.Apply(ordered), nil
}

func (r *Resolver) buildGraph(schema string, tables []Table, fks []ForeignKey) (*graph.Graph, error) {
	b := graph.NewBuilder(schema)
	for _, t := range tables {
		b.AddTable(t.Name)
	}
	for _, fk := range fks {
		b.AddForeignKey(graph.ForeignKeyRef{
			Table:           fk.Table,
			ReferencedTable: fk.ReferencedTable,
			Constraint:      fk.Constraint,
		})
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}

	for _, fk := range b.Skipped() {
		r.log.Debugw("skipping foreign key outside the listed tables",
			"table", fk.Table,
			"references", fk.ReferencedTable,
			"constraint", fk.Constraint)
	}
	r.log.Debugw("dependency graph built",
		"schema", schema,
		"tables", g.NodeCount(),
		"foreign_keys", g.EdgeCount())

	return g, nil
}
