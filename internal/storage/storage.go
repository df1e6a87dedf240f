package storage

import (
	"context"
	"sort"
	"strings"
)

// Prober checks whether a table exists by reading at most one row from it.
type Prober interface {
	Probe(ctx context.Context, table string) error
}

// Storage is a Prober that can also sample rows, used by the tables command.
type Storage interface {
	Prober

	// Sample reads the first row of a table and reports its columns.
	Sample(ctx context.Context, table string) (*Sample, error)
	Close() error
}

// Sample describes the first row of a table. Columns are sorted by name so
// every backend reports them the same way.
type Sample struct {
	Columns []string
	Empty   bool
}

func newSample(columns []string) *Sample {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return &Sample{Columns: sorted}
}

// IsRelationMissing reports whether err says the probed relation does not
// exist. Neither PostgREST nor lib/pq expose a stable error type for this
// across versions, so the check is done on the message text.
func IsRelationMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}
