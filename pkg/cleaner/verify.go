package cleaner

import (
	"context"
	"fmt"
	"strings"
)

// VerifyStats summarises a post-clean check.
type VerifyStats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	// Remaining maps each non-empty table to its row count.
	Remaining map[string]int64
}

// Verify counts the rows of every non-excluded table and fails if any table
// still holds rows. Tables outside Only are ignored when Only is set.
func (c *Cleaner) Verify(ctx context.Context, conn Connection) (*VerifyStats, error) {
	caps := conn.Capabilities()
	if !c.scanner.SchemaIntrospectionAvailable(ctx, conn) {
		return nil, unsupported("verify row counts", caps)
	}

	fresh := NewScanner(c.exclusions, false, c.logger)
	stats, err := fresh.TableStats(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	only := NewExclusionSet(c.opts.Only...)
	result := &VerifyStats{Remaining: make(map[string]int64)}
	var failed []string
	for _, st := range stats {
		if only.Len() > 0 && !only.Contains(st.Table) {
			continue
		}
		result.TablesVerified++
		if st.ExactRowCount == 0 {
			result.TablesPassed++
			continue
		}
		result.TablesFailed++
		result.Remaining[st.Table] = st.ExactRowCount
		failed = append(failed, fmt.Sprintf("%s (%d rows)", st.Table, st.ExactRowCount))
	}

	c.logger.Infof("Verification complete: %d tables verified, %d passed, %d failed",
		result.TablesVerified, result.TablesPassed, result.TablesFailed)

	if result.TablesFailed > 0 {
		return result, fmt.Errorf("verification failed: tables still hold rows: %s", strings.Join(failed, ", "))
	}
	return result, nil
}
