package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexityScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		facts StructureFacts
		want  int
	}{
		{"bare table", StructureFacts{}, 1},
		{"index contribution is capped", StructureFacts{Indexes: 20}, 4},
		{"constraint contribution is capped", StructureFacts{Constraints: 20}, 3},
		{"foreign key flat bonus", StructureFacts{ForeignKeys: 3}, 3},
		{"large objects", StructureFacts{HasLOB: true}, 2},
		{"everything", StructureFacts{Indexes: 2, Constraints: 3, ForeignKeys: 1, Triggers: 1, HasLOB: true}, 7},
		{"many triggers clamp to ten", StructureFacts{Triggers: 25}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComplexityScore(tt.facts))
		})
	}
}

func TestComplexityScore_AlwaysBounded(t *testing.T) {
	t.Parallel()
	for idx := 0; idx <= 30; idx += 3 {
		for cons := 0; cons <= 30; cons += 5 {
			for trig := 0; trig <= 12; trig += 4 {
				for _, lob := range []bool{false, true} {
					score := ComplexityScore(StructureFacts{
						Indexes: idx, Constraints: cons, ForeignKeys: cons % 2, Triggers: trig, HasLOB: lob,
					})
					assert.GreaterOrEqual(t, score, 1)
					assert.LessOrEqual(t, score, 10)
				}
			}
		}
	}
}

func TestEstimateDowntime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		sizeMB     float64
		complexity int
		facts      StructureFacts
		method     MigrationMethod
		want       float64
	}{
		{"online ten gigabytes", 10240, 5, StructureFacts{Indexes: 2}, MethodOnline, 800},
		{"large objects add half", 10240, 5, StructureFacts{Indexes: 2, HasLOB: true}, MethodOnline, 1200},
		{"exchange is cheap", 10240, 5, StructureFacts{Indexes: 2}, MethodExchange, 260},
		{"offline halves the base", 1024, 10, StructureFacts{}, MethodOffline, 60},
		{"empty table", 0, 3, StructureFacts{Indexes: 4}, MethodOnline, 0},
		{"negative size is clamped", -50, 3, StructureFacts{}, MethodOnline, 0},
		{"rounded to two decimals", 100, 1, StructureFacts{}, MethodOnline, 1.17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateDowntime(tt.sizeMB, tt.complexity, tt.facts, tt.method))
		})
	}
}

func TestParallelHint(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()
	tests := []struct {
		name   string
		rows   int64
		sizeMB float64
		want   int
	}{
		{"small table", 500_000, 50, 1},
		{"at threshold", 1_000_000, 100, 2},
		{"eight million", 8_000_000, 800, 5},
		{"large on disk doubles", 8_000_000, 20_480, 10},
		{"capped", 1_000_000_000_000, 50_000_000, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParallelHint(tt.rows, tt.sizeMB, th))
		})
	}
}
