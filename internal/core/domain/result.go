package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scheme is the structural method of splitting a table.
type Scheme string

const (
	SchemeRange Scheme = "RANGE"
	SchemeHash  Scheme = "HASH"
	SchemeList  Scheme = "LIST"
	SchemeNone  Scheme = "NONE"
)

// Granularity is the interval bucket for RANGE schemes.
type Granularity string

const (
	GranularityDaily   Granularity = "DAILY"
	GranularityWeekly  Granularity = "WEEKLY"
	GranularityMonthly Granularity = "MONTHLY"
	GranularityYearly  Granularity = "YEARLY"
	GranularityNone    Granularity = "NONE"
)

// Source records whether a recommendation came from a validated stereotype or
// from general column analysis.
type Source string

const (
	SourceStereotype Source = "stereotype"
	SourceGeneral    Source = "general"
)

// Recommendation is the output of the strategy decision tree. Key is a column
// name, or a conversion expression when Conversion is set.
type Recommendation struct {
	Scheme         Scheme      `json:"scheme"`
	Key            string      `json:"key,omitempty"`
	Granularity    Granularity `json:"granularity"`
	PartitionCount int         `json:"partition_count,omitempty"`
	Rationale      string      `json:"rationale"`
	Source         Source      `json:"source"`
	Conversion     *DateFormat `json:"conversion,omitempty"`
}

// Partitioned reports whether the recommendation proposes any scheme at all.
func (r Recommendation) Partitioned() bool {
	return r.Scheme != SchemeNone && r.Scheme != ""
}

// CandidateSet holds every usable profile plus, when no temporal column
// produced one, the non-standard date candidates.
type CandidateSet struct {
	Profiles    []ColumnProfile        `json:"profiles"`
	NonStandard []NonStandardCandidate `json:"non_standard,omitempty"`
}

func (c CandidateSet) Empty() bool {
	return len(c.Profiles) == 0 && len(c.NonStandard) == 0
}

// TaskStatus is the lifecycle state of a unit of work.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusAnalyzing TaskStatus = "ANALYZING"
	StatusAnalyzed  TaskStatus = "ANALYZED"
	StatusFailed    TaskStatus = "FAILED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusAnalyzed, StatusFailed:
		return true
	}
	return false
}

// Claimable reports whether a task in this status may move to ANALYZING.
func (s TaskStatus) Claimable() bool {
	return s == StatusPending || s == StatusAnalyzed || s == StatusFailed
}

// Readiness is the sub-status of an ANALYZED task.
type Readiness string

const (
	ReadinessReady   Readiness = "READY"
	ReadinessBlocked Readiness = "BLOCKED"
)

type Task struct {
	ID           int64      `json:"id" db:"id"`
	Owner        string     `json:"owner" db:"owner"`
	TableName    string     `json:"table_name" db:"table_name"`
	Status       TaskStatus `json:"status" db:"status"`
	Readiness    Readiness  `json:"readiness,omitempty" db:"readiness"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty" db:"analyzed_at"`
}

func (t Task) Ref() TableRef {
	return TableRef{Owner: t.Owner, Name: t.TableName}
}

// TaskUpdate carries the fields written on a status transition.
type TaskUpdate struct {
	Status       TaskStatus
	Readiness    Readiness
	ErrorMessage string
}

// AnalysisResult aggregates every finding for one table. It is written once per
// run and replaces the prior result of the same task.
type AnalysisResult struct {
	TaskID          int64             `json:"task_id"`
	RunID           uuid.UUID         `json:"run_id"`
	Table           TableDescriptor   `json:"table"`
	Stereotype      StereotypeMatch   `json:"stereotype"`
	Candidates      CandidateSet      `json:"candidates"`
	Selected        *ColumnProfile    `json:"selected,omitempty"`
	Recommendation  Recommendation    `json:"recommendation"`
	Complexity      int               `json:"complexity"`
	DowntimeMinutes float64           `json:"downtime_minutes"`
	Method          MigrationMethod   `json:"migration_method"`
	ParallelHint    int               `json:"parallel_hint"`
	Dependencies    DependencySummary `json:"dependencies"`
	BlockingIssues  []BlockingIssue   `json:"blocking_issues"`
	Warnings        []Warning         `json:"warnings"`
	Readiness       Readiness         `json:"readiness"`
	AnalyzedAt      time.Time         `json:"analyzed_at"`
	DurationMS      int64             `json:"duration_ms"`
}
