package domain

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// RecommendInput is everything the decision tree looks at. Stereotype must
// already have passed the quality gate; pass nil otherwise.
type RecommendInput struct {
	Table       TableDescriptor
	Stereotype  *StereotypeMatch
	Selected    *ColumnProfile
	NonStandard []NonStandardCandidate
	PrimaryKey  string
}

// Recommend maps the validated stereotype or the selected candidate to a
// partitioning strategy. Every path ends in exactly one recommendation, which
// may be SchemeNone with a rationale.
func Recommend(in RecommendInput, th Thresholds) Recommendation {
	if in.Stereotype != nil && in.Stereotype.Matched() {
		return Recommendation{
			Scheme:      SchemeRange,
			Key:         in.Stereotype.Column,
			Granularity: in.Stereotype.Granularity,
			Rationale:   fmt.Sprintf("stereotype: %s; %s", in.Stereotype.Archetype, in.Stereotype.Rationale),
			Source:      SourceStereotype,
		}
	}

	if in.Selected != nil {
		return recommendForRange(*in.Selected, th)
	}

	if in.Table.RowCount > th.LargeTableRows && in.PrimaryKey != "" {
		return Recommendation{
			Scheme:         SchemeHash,
			Key:            in.PrimaryKey,
			Granularity:    GranularityNone,
			PartitionCount: th.HashPartitions,
			Rationale: fmt.Sprintf("no temporal candidate; %s rows exceed %s, hash on primary key %s into %d partitions",
				humanize.Comma(in.Table.RowCount), humanize.Comma(th.LargeTableRows), in.PrimaryKey, th.HashPartitions),
			Source: SourceGeneral,
		}
	}

	if len(in.NonStandard) > 0 {
		c := in.NonStandard[0]
		format := c.Format
		return Recommendation{
			Scheme:      SchemeRange,
			Key:         c.Expression,
			Granularity: GranularityMonthly,
			Rationale:   fmt.Sprintf("column %s stores dates as %s; partition on the converted expression", c.Column, c.Format),
			Source:      SourceGeneral,
			Conversion:  &format,
		}
	}

	return Recommendation{
		Scheme:      SchemeNone,
		Granularity: GranularityNone,
		Rationale:   "not suitable for partitioning",
		Source:      SourceGeneral,
	}
}

func recommendForRange(p ColumnProfile, th Thresholds) Recommendation {
	rec := Recommendation{Key: p.Column, Source: SourceGeneral}
	years := float64(p.RangeDays) / 365
	switch {
	case p.RangeDays > int64(th.MultiYearRangeDays):
		rec.Scheme, rec.Granularity = SchemeRange, GranularityMonthly
		rec.Rationale = fmt.Sprintf("column %s spans %d days (%.1f years); monthly intervals", p.Column, p.RangeDays, years)
	case p.RangeDays > int64(th.MonthlyRangeDays):
		rec.Scheme, rec.Granularity = SchemeRange, GranularityMonthly
		rec.Rationale = fmt.Sprintf("column %s spans %d days (over %.1f years); monthly intervals", p.Column, p.RangeDays, years)
	case p.RangeDays > int64(th.MinRangeDays):
		rec.Scheme, rec.Granularity = SchemeRange, GranularityNone
		rec.Rationale = fmt.Sprintf("column %s spans %d days; static ranges without an interval", p.Column, p.RangeDays)
	default:
		rec.Scheme, rec.Granularity, rec.Key = SchemeNone, GranularityNone, ""
		rec.Rationale = fmt.Sprintf("range too small: column %s spans only %d days", p.Column, p.RangeDays)
	}
	if rec.Partitioned() && p.HasTime {
		rec.Rationale += "; truncate the time of day in the partition key"
	}
	return rec
}
