package domain

import "math"

// StructureFacts are the structural counts the risk scores are derived from.
type StructureFacts struct {
	Indexes     int
	Constraints int
	ForeignKeys int
	Triggers    int
	HasLOB      bool
}

// ComplexityScore is a bounded [1, 10] estimate of migration risk.
func ComplexityScore(f StructureFacts) int {
	score := 1.0
	score += math.Min(float64(f.Indexes)*0.5, 3)
	score += math.Min(float64(f.Constraints)*0.3, 2)
	if f.ForeignKeys > 0 {
		score += 2
	}
	score += float64(f.Triggers)
	if f.HasLOB {
		score++
	}
	return clamp(int(math.Round(score)), 1, 10)
}

// EstimateDowntime predicts the minutes needed to convert a table of sizeMB.
func EstimateDowntime(sizeMB float64, complexity int, f StructureFacts, method MigrationMethod) float64 {
	gb := math.Max(sizeMB, 0) / 1024
	minutes := gb * 60 * method.Multiplier() * (float64(complexity) / 5)
	minutes += float64(f.Indexes) * gb * 10
	if f.HasLOB {
		minutes *= 1.5
	}
	return round2(math.Max(minutes, 0))
}

const parallelLargeSizeMB = 10 * 1024

// ParallelHint is the fan-out budget handed to the sampler. Small tables get 1;
// larger ones grow logarithmically, doubled above 10 GB and capped.
func ParallelHint(rows int64, sizeMB float64, th Thresholds) int {
	if rows < th.ParallelSmallRows || th.ParallelSmallRows <= 0 {
		return 1
	}
	hint := int(math.Ceil(math.Log2(float64(rows)/float64(th.ParallelSmallRows)))) + 2
	if sizeMB > parallelLargeSizeMB {
		hint *= 2
	}
	return clamp(hint, 1, max(th.ParallelMaxDegree, 1))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
