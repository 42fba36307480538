package cleaner

import (
	"context"
	"fmt"
)

// Plan actions.
const (
	ActionDelete = "delete"
	ActionSkip   = "skip"
)

// UnknownRows marks a row count that could not be read.
const UnknownRows int64 = -1

// PlanEntry is one table of a plan.
type PlanEntry struct {
	Table  string `yaml:"table"`
	Rows   int64  `yaml:"rows"`
	Action string `yaml:"action"`
}

// Plan lists what a pass would do, in the order it would do it.
type Plan struct {
	Strategy string      `yaml:"strategy"`
	Dialect  string      `yaml:"dialect"`
	Schema   string      `yaml:"schema"`
	Excluded []string    `yaml:"excluded,omitempty"`
	Tables   []PlanEntry `yaml:"tables"`
}

// Deleted returns the entries a pass would empty.
func (p *Plan) Deleted() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Tables {
		if e.Action == ActionDelete {
			out = append(out, e)
		}
	}
	return out
}

// Plan computes the tables the next pass would touch without deleting
// anything.
func (c *Cleaner) Plan(ctx context.Context, conn Connection) (*Plan, error) {
	caps := conn.Capabilities()
	schema, err := conn.CurrentSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current schema: %w", err)
	}

	plan := &Plan{
		Strategy: c.opts.Strategy.String(),
		Dialect:  caps.Dialect,
		Schema:   schema,
	}

	listed, err := conn.ListTables(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for _, t := range listed {
		if c.exclusions.Contains(t.Name) {
			plan.Excluded = append(plan.Excluded, t.Name)
		}
	}

	counts, err := c.rowCounts(ctx, conn)
	if err != nil {
		return nil, err
	}
	countOf := func(name string) int64 {
		if counts == nil {
			return UnknownRows
		}
		return counts[name]
	}

	switch c.opts.Strategy {
	case OrderedDelete:
		if !caps.DependencyIntrospection {
			return nil, unsupported("ordered delete", caps)
		}
		order, err := c.resolver.ResolveOrder(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("resolve deletion order: %w", err)
		}
		for _, t := range order {
			plan.Tables = append(plan.Tables, PlanEntry{Table: t.Name, Rows: countOf(t.Name), Action: ActionDelete})
		}

	default:
		if !caps.IntegrityDisable {
			return nil, unsupported("disable referential integrity", caps)
		}
		targets, _, err := c.truncateTargets(ctx, conn, c.logger)
		if err != nil && IsStaleCache(err) {
			c.scanner.Invalidate()
			targets, _, err = c.truncateTargets(ctx, conn, c.logger)
		}
		if err != nil {
			return nil, err
		}

		selected := make(map[string]bool, len(targets))
		for _, t := range targets {
			selected[t.Name] = true
			plan.Tables = append(plan.Tables, PlanEntry{Table: t.Name, Rows: countOf(t.Name), Action: ActionDelete})
		}
		for _, t := range c.exclusions.Apply(listed) {
			if !selected[t.Name] {
				plan.Tables = append(plan.Tables, PlanEntry{Table: t.Name, Rows: countOf(t.Name), Action: ActionSkip})
			}
		}
	}

	return plan, nil
}

// rowCounts returns the count of every non-excluded table, or nil when
// information_schema is unavailable.
func (c *Cleaner) rowCounts(ctx context.Context, conn Connection) (map[string]int64, error) {
	if !c.scanner.SchemaIntrospectionAvailable(ctx, conn) {
		return nil, nil
	}

	stats, err := c.scanner.TableStats(ctx, conn)
	if err != nil && IsStaleCache(err) {
		c.scanner.Invalidate()
		stats, err = c.scanner.TableStats(ctx, conn)
	}
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(stats))
	for _, st := range stats {
		counts[st.Table] = st.ExactRowCount
	}
	return counts, nil
}
