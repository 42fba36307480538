package cleaner

import "fmt"

// Strategy selects how a pass removes rows.
type Strategy int

const (
	// TruncateAllWithIntegrityDisabled switches referential checks off for
	// the session and empties only the tables that hold rows.
	TruncateAllWithIntegrityDisabled Strategy = iota
	// OrderedDelete empties every table in foreign-key order with checks on.
	OrderedDelete
)

// ParseStrategy maps the configuration names to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "truncate", "":
		return TruncateAllWithIntegrityDisabled, nil
	case "ordered-delete":
		return OrderedDelete, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q (want truncate or ordered-delete)", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case TruncateAllWithIntegrityDisabled:
		return "truncate"
	case OrderedDelete:
		return "ordered-delete"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}
