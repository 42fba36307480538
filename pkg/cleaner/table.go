// Package cleaner empties the tables of a relational database between test
// runs. It orders deletions by foreign keys, skips tables that are already
// empty, and works against any database exposed through Connection.
package cleaner

// Table names one table of the schema being cleaned.
type Table struct {
	Schema string
	Name   string
}

// QualifiedName returns schema.name, or just name when the schema is empty.
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (t Table) String() string {
	return t.QualifiedName()
}

// ForeignKey records that Table holds a key pointing at ReferencedTable.
// Table has to be emptied before ReferencedTable.
type ForeignKey struct {
	Table           string
	ReferencedTable string
	Constraint      string
}

// TableStats is the exact row count of a single table.
type TableStats struct {
	Table         string `yaml:"table"`
	ExactRowCount int64  `yaml:"rows"`
}
