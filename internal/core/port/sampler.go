package port

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

// ProbeRequest describes one bounded read against live rows. The engine never
// builds query text; adapters turn the request into a parameterized query.
type ProbeRequest struct {
	Table  domain.TableRef
	Column string
	// ParallelHint is an opaque fan-out budget. Adapters may ignore it.
	ParallelHint int
	// YearBounds, when set, restricts the probe to rows in the sane year range.
	YearBounds *domain.YearBounds
	// SampleRows caps row-limited probes.
	SampleRows int
}

// Sampler executes read-only probes. Every probe is either an aggregate or
// row-limited.
type Sampler interface {
	ProbeDateRange(ctx context.Context, req ProbeRequest) (domain.DateRange, error)
	// ProbeTimeComponent reports whether any sampled value differs from its
	// date-truncated form.
	ProbeTimeComponent(ctx context.Context, req ProbeRequest) (bool, error)
	ProbeDistinctDays(ctx context.Context, req ProbeRequest) (int64, error)
	ProbeNumericRange(ctx context.Context, req ProbeRequest) (domain.NumericRange, error)
	// ProbeSampleValue returns one non-null value as text; ok is false when the
	// column is entirely null.
	ProbeSampleValue(ctx context.Context, req ProbeRequest) (value string, ok bool, err error)
	// ProbeFormatMatch counts sampled values matching the pattern's regex.
	ProbeFormatMatch(ctx context.Context, req ProbeRequest, pattern domain.TextDatePattern) (int64, error)
}

// Probe names used for audit, metrics and span naming.
const (
	ProbeDateRange     = "date_range"
	ProbeTimeComponent = "time_component"
	ProbeDistinctDays  = "distinct_days"
	ProbeNumericRange  = "numeric_range"
	ProbeSampleValue   = "sample_value"
	ProbeFormatMatch   = "format_match"
)
