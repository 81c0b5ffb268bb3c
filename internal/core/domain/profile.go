package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const midnight = "00:00:00"

// ColumnProfile is the immutable observation of one temporal column.
// DistinctDays is only populated when the column carries a time of day.
type ColumnProfile struct {
	Column       string     `json:"column"`
	DataType     string     `json:"data_type"`
	Position     int        `json:"position"`
	Min          *time.Time `json:"min,omitempty"`
	Max          *time.Time `json:"max,omitempty"`
	RangeDays    int64      `json:"range_days"`
	NullCount    int64      `json:"null_count"`
	NonNullCount int64      `json:"non_null_count"`
	NullPercent  float64    `json:"null_percent"`
	HasTime      bool       `json:"has_time"`
	DistinctDays *int64     `json:"distinct_days,omitempty"`
	UsageScore   int        `json:"usage_score"`
	QualityFlag  bool       `json:"quality_flag"`
}

// ProfileInput gathers the probe results for one column. Filtered is the
// re-probe restricted to sane years and is only consulted when the raw bounds
// are implausible.
type ProfileInput struct {
	Column        ColumnDescriptor
	Raw           DateRange
	Filtered      *DateRange
	TimeComponent bool
	DistinctDays  *int64
	UsageScore    int
}

// BuildColumnProfile turns probe results into a profile and the warnings it
// raises. ok is false when the column holds no usable data.
func BuildColumnProfile(in ProfileInput, th Thresholds) (p ColumnProfile, warnings []Warning, ok bool) {
	if in.Raw.Min == nil && in.Raw.Max == nil {
		return ColumnProfile{}, nil, false
	}

	p = ColumnProfile{
		Column:       in.Column.Name,
		DataType:     in.Column.DataType,
		Position:     in.Column.Position,
		Min:          in.Raw.Min,
		Max:          in.Raw.Max,
		NonNullCount: in.Raw.NonNull,
		NullCount:    max(in.Raw.Total-in.Raw.NonNull, 0),
		NullPercent:  NullPercent(in.Raw.Total, in.Raw.NonNull),
		HasTime:      in.TimeComponent || ClockHasTime(in.Raw),
		UsageScore:   in.UsageScore,
		QualityFlag:  YearsOutOfBounds(in.Raw, th),
	}

	bounds := in.Raw
	if p.QualityFlag {
		warnings = append(warnings, Warning{
			Code:   WarnImplausibleYears,
			Column: p.Column,
			Message: fmt.Sprintf("observed years %s..%s fall outside [%d, %d]",
				yearOf(in.Raw.Min), yearOf(in.Raw.Max), th.MinSaneYear, th.MaxSaneYear),
		})
		if in.Filtered != nil && in.Filtered.Min != nil && in.Filtered.Max != nil {
			bounds = *in.Filtered
		}
	}
	p.RangeDays = RangeDays(bounds.Min, bounds.Max)

	if p.HasTime {
		p.DistinctDays = in.DistinctDays
		warnings = append(warnings, Warning{
			Code:    WarnTimeComponent,
			Column:  p.Column,
			Message: "values carry a time of day; the partition key needs date truncation",
		})
	}
	if p.NullPercent > th.HighNullWarnPercent {
		warnings = append(warnings, Warning{
			Code:    WarnHighNulls,
			Column:  p.Column,
			Message: fmt.Sprintf("%.2f%% of rows are null", p.NullPercent),
		})
	}
	return p, warnings, true
}

// SparseDays flags a daily recommendation on a column where fewer than half
// of the days in its range hold any row.
func SparseDays(p ColumnProfile, rec Recommendation) (Warning, bool) {
	if rec.Granularity != GranularityDaily || !strings.EqualFold(rec.Key, p.Column) {
		return Warning{}, false
	}
	if p.DistinctDays == nil || p.RangeDays <= 0 {
		return Warning{}, false
	}
	span := p.RangeDays + 1
	if *p.DistinctDays*2 >= span {
		return Warning{}, false
	}
	return Warning{
		Code:    WarnSparseDays,
		Column:  p.Column,
		Message: fmt.Sprintf("only %d of %d days hold rows; most daily partitions would be empty", *p.DistinctDays, span),
	}, true
}

// NullPercent is null/total*100 rounded to two decimals, 0 for an empty table.
func NullPercent(total, nonNull int64) float64 {
	if total <= 0 {
		return 0
	}
	nulls := max(total-nonNull, 0)
	return round2(float64(nulls) / float64(total) * 100)
}

// YearsOutOfBounds reports whether the year of either bound is implausible.
func YearsOutOfBounds(r DateRange, th Thresholds) bool {
	for _, t := range []*time.Time{r.Min, r.Max} {
		if t == nil {
			continue
		}
		if y := t.Year(); y < th.MinSaneYear || y > th.MaxSaneYear {
			return true
		}
	}
	return false
}

// RangeDays counts whole days between min and max. It works on Unix seconds so
// that bounds centuries apart do not overflow time.Duration.
func RangeDays(minT, maxT *time.Time) int64 {
	if minT == nil || maxT == nil {
		return 0
	}
	d := (maxT.Unix() - minT.Unix()) / 86400
	if d < 0 {
		return 0
	}
	return d
}

// ClockHasTime compares the formatted clock portion of the bounds to midnight.
func ClockHasTime(r DateRange) bool {
	for _, c := range []string{r.ClockMin, r.ClockMax} {
		if c != "" && c != midnight {
			return true
		}
	}
	return false
}

func yearOf(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return fmt.Sprintf("%04d", t.Year())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
