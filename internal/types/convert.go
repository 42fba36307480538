// Package types converts loosely typed driver values into Go scalars.
package types

import (
	"math"
	"strconv"
	"strings"
)

// ToInt64 converts a value returned by a SQL driver to int64.
// Supports the sized int and uint kinds, floats, and the []byte/string
// forms MySQL uses for aggregates on the text protocol. Unparseable or
// nil values convert to 0. Unsigned values above math.MaxInt64 clamp to
// math.MaxInt64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return clampUint64(uint64(i))
	case uint64:
		return clampUint64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	case []byte:
		return parseInt(string(i))
	case string:
		return parseInt(i)
	default:
		return 0
	}
}

func clampUint64(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ToString converts a driver value holding text to a string.
// MySQL returns []byte for VARCHAR columns; pgx returns string.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return ""
	}
}
