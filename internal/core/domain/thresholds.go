package domain

import (
	"fmt"
	"time"
)

// MigrationMethod is the technique used to convert a table, which scales the
// downtime estimate.
type MigrationMethod string

const (
	MethodOnline   MigrationMethod = "online"
	MethodOffline  MigrationMethod = "offline"
	MethodExchange MigrationMethod = "exchange"
)

// Multiplier returns the downtime weight of the method. Unknown methods are
// treated as online.
func (m MigrationMethod) Multiplier() float64 {
	switch m {
	case MethodOffline:
		return 0.5
	case MethodExchange:
		return 0.1
	default:
		return 1.0
	}
}

func (m MigrationMethod) Valid() bool {
	switch m {
	case MethodOnline, MethodOffline, MethodExchange:
		return true
	}
	return false
}

// Thresholds holds every tunable cutoff used by the engine. It is built once
// and handed to the analyzer at construction.
type Thresholds struct {
	MinSaneYear          int             `yaml:"min_sane_year" json:"min_sane_year"`
	MaxSaneYear          int             `yaml:"max_sane_year" json:"max_sane_year"`
	NullGapPoints        float64         `yaml:"null_gap_points" json:"null_gap_points"`
	UsageSimilarityRatio float64         `yaml:"usage_similarity_ratio" json:"usage_similarity_ratio"`
	HighNullWarnPercent  float64         `yaml:"high_null_warn_percent" json:"high_null_warn_percent"`
	LargeTableRows       int64           `yaml:"large_table_rows" json:"large_table_rows"`
	HashPartitions       int             `yaml:"hash_partitions" json:"hash_partitions"`
	MonthlyRangeDays     int             `yaml:"monthly_range_days" json:"monthly_range_days"`
	MultiYearRangeDays   int             `yaml:"multi_year_range_days" json:"multi_year_range_days"`
	MinRangeDays         int             `yaml:"min_range_days" json:"min_range_days"`
	FormatSampleRows     int             `yaml:"format_sample_rows" json:"format_sample_rows"`
	ProbeTimeout         time.Duration   `yaml:"probe_timeout" json:"probe_timeout"`
	ParallelSmallRows    int64           `yaml:"parallel_small_rows" json:"parallel_small_rows"`
	ParallelMaxDegree    int             `yaml:"parallel_max_degree" json:"parallel_max_degree"`
	MigrationMethod      MigrationMethod `yaml:"migration_method" json:"migration_method"`
	Weights              UsageWeights    `yaml:"usage_weights" json:"usage_weights"`
}

// UsageWeights are the per-reference contributions to a column's usage score.
type UsageWeights struct {
	LeadingIndex int `yaml:"leading_index" json:"leading_index"`
	Index        int `yaml:"index" json:"index"`
	View         int `yaml:"view" json:"view"`
	Routine      int `yaml:"routine" json:"routine"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSaneYear:          1900,
		MaxSaneYear:          2100,
		NullGapPoints:        10,
		UsageSimilarityRatio: 0.8,
		HighNullWarnPercent:  50,
		LargeTableRows:       10_000_000,
		HashPartitions:       16,
		MonthlyRangeDays:     365,
		MultiYearRangeDays:   3 * 365,
		MinRangeDays:         90,
		FormatSampleRows:     1000,
		ProbeTimeout:         30 * time.Second,
		ParallelSmallRows:    1_000_000,
		ParallelMaxDegree:    16,
		MigrationMethod:      MethodOnline,
		Weights: UsageWeights{
			LeadingIndex: 15,
			Index:        10,
			View:         3,
			Routine:      2,
		},
	}
}

// Validate rejects threshold combinations that would make the decision tree
// inconsistent.
func (t Thresholds) Validate() error {
	if t.MinSaneYear >= t.MaxSaneYear {
		return fmt.Errorf("min_sane_year (%d) must be below max_sane_year (%d)", t.MinSaneYear, t.MaxSaneYear)
	}
	if t.NullGapPoints < 0 || t.NullGapPoints > 100 {
		return fmt.Errorf("null_gap_points must be within [0, 100], got %v", t.NullGapPoints)
	}
	if t.UsageSimilarityRatio <= 0 || t.UsageSimilarityRatio > 1 {
		return fmt.Errorf("usage_similarity_ratio must be within (0, 1], got %v", t.UsageSimilarityRatio)
	}
	if t.HashPartitions <= 0 {
		return fmt.Errorf("hash_partitions must be positive, got %d", t.HashPartitions)
	}
	if t.LargeTableRows <= 0 {
		return fmt.Errorf("large_table_rows must be positive, got %d", t.LargeTableRows)
	}
	if t.MinRangeDays < 0 || t.MinRangeDays >= t.MonthlyRangeDays {
		return fmt.Errorf("min_range_days (%d) must be non-negative and below monthly_range_days (%d)", t.MinRangeDays, t.MonthlyRangeDays)
	}
	if t.MultiYearRangeDays < t.MonthlyRangeDays {
		return fmt.Errorf("multi_year_range_days (%d) must not be below monthly_range_days (%d)", t.MultiYearRangeDays, t.MonthlyRangeDays)
	}
	if t.FormatSampleRows <= 0 {
		return fmt.Errorf("format_sample_rows must be positive, got %d", t.FormatSampleRows)
	}
	if t.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", t.ProbeTimeout)
	}
	if t.ParallelSmallRows <= 0 || t.ParallelMaxDegree <= 0 {
		return fmt.Errorf("parallel_small_rows and parallel_max_degree must be positive")
	}
	if !t.MigrationMethod.Valid() {
		return fmt.Errorf("migration_method %q must be online, offline, or exchange", t.MigrationMethod)
	}
	return nil
}
