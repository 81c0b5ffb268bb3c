package domain

import "math"

// SelectCandidate picks the best partition-key candidate. It walks the profiles
// in order, comparing each against the current best; the earlier profile wins
// an exact tie. Profiles without bounds are ignored. Returns nil when no profile
// qualifies.
func SelectCandidate(profiles []ColumnProfile, th Thresholds) *ColumnProfile {
	var best *ColumnProfile
	for i := range profiles {
		p := &profiles[i]
		if p.Min == nil && p.Max == nil {
			continue
		}
		if best == nil || Better(*p, *best, th) {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	selected := *best
	return &selected
}

// Better reports whether a strictly beats b under the precedence:
// quality, null percentage gap, time-of-day absence, usage, then range width
// when usage is similar.
func Better(a, b ColumnProfile, th Thresholds) bool {
	if a.QualityFlag != b.QualityFlag {
		return !a.QualityFlag
	}
	if math.Abs(a.NullPercent-b.NullPercent) > th.NullGapPoints {
		return a.NullPercent < b.NullPercent
	}
	if a.HasTime != b.HasTime {
		return !a.HasTime
	}
	if !UsageSimilar(a.UsageScore, b.UsageScore, th.UsageSimilarityRatio) {
		return a.UsageScore > b.UsageScore
	}
	return a.RangeDays > b.RangeDays
}

// UsageSimilar reports whether two usage scores are within the similarity
// ratio of each other. Two zero scores are similar.
func UsageSimilar(a, b int, ratio float64) bool {
	lo, hi := min(a, b), max(a, b)
	if hi <= 0 {
		return true
	}
	return float64(lo)/float64(hi) >= ratio
}
