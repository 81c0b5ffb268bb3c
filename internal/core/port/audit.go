package port

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

// ProbeEntry represents a single auditable probe against live data.
type ProbeEntry struct {
	Probe        string
	Table        domain.TableRef
	Column       string
	ParallelHint int
	DurationMS   int64
	Err          error
}

// ProbeAuditor records probe audit events.
type ProbeAuditor interface {
	Record(ctx context.Context, entry ProbeEntry)
	Close() error
}
