package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

type BlockingIssue struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Remedy      string   `json:"remedy"`
}

// ColumnDependencies lists the objects that reference one analyzed column.
type ColumnDependencies struct {
	Column      string   `json:"column"`
	Indexes     []string `json:"indexes,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	ForeignKeys []string `json:"foreign_keys,omitempty"`
	Views       []string `json:"views,omitempty"`
	Routines    []string `json:"routines,omitempty"`
}

type DependencySummary struct {
	IndexCount       int                  `json:"index_count"`
	ConstraintCount  int                  `json:"constraint_count"`
	TriggerCount     int                  `json:"trigger_count"`
	ReferencingCount int                  `json:"referencing_count"`
	ForeignKeyCount  int                  `json:"foreign_key_count"`
	Columns          []ColumnDependencies `json:"columns,omitempty"`
}

// ColumnDependenciesFor collects the indexes, constraints and objects that name
// column.
func ColumnDependenciesFor(column string, indexes []IndexInfo, constraints []ConstraintInfo, refs []ObjectReference) ColumnDependencies {
	dep := ColumnDependencies{Column: column}
	for _, idx := range indexes {
		if containsFold(idx.Columns, column) {
			dep.Indexes = append(dep.Indexes, idx.Name)
		}
	}
	for _, c := range constraints {
		if !containsFold(c.Columns, column) {
			continue
		}
		if c.Type == ConstraintForeignKey {
			dep.ForeignKeys = append(dep.ForeignKeys, c.Name)
		} else {
			dep.Constraints = append(dep.Constraints, c.Name)
		}
	}
	for _, r := range refs {
		name := TableRef{Owner: r.Owner, Name: r.Name}.String()
		switch r.Type {
		case ObjectView:
			dep.Views = append(dep.Views, name)
		case ObjectRoutine:
			dep.Routines = append(dep.Routines, name)
		}
	}
	return dep
}

// BlockingIssues flags conditions that make partitioning unsafe, ordered by
// severity.
func BlockingIssues(table TableDescriptor, deps DependencySummary) []BlockingIssue {
	var issues []BlockingIssue
	switch table.Kind {
	case TableKindMaterializedView:
		issues = append(issues, BlockingIssue{
			Severity:    SeverityError,
			Description: fmt.Sprintf("%s is a materialized view and cannot be partitioned directly", table.Ref()),
			Remedy:      "partition the base tables or rebuild the view on a partitioned table",
		})
	case TableKindView:
		issues = append(issues, BlockingIssue{
			Severity:    SeverityError,
			Description: fmt.Sprintf("%s is a view, not a table", table.Ref()),
			Remedy:      "analyze the underlying tables instead",
		})
	case TableKindIndexOrganized:
		issues = append(issues, BlockingIssue{
			Severity:    SeverityError,
			Description: fmt.Sprintf("%s uses an index-organized layout", table.Ref()),
			Remedy:      "convert to a heap table or partition the IOT by its primary key prefix",
		})
	case TableKindPartitioned:
		issues = append(issues, BlockingIssue{
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%s is already partitioned", table.Ref()),
			Remedy:      "compare the existing scheme with the recommendation before repartitioning",
		})
	}
	if deps.ReferencingCount > 0 {
		issues = append(issues, BlockingIssue{
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%d foreign keys in other tables reference %s", deps.ReferencingCount, table.Ref()),
			Remedy:      "disable or recreate the referencing constraints during migration",
		})
	}
	if deps.TriggerCount > 0 {
		issues = append(issues, BlockingIssue{
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%d triggers fire on %s", deps.TriggerCount, table.Ref()),
			Remedy:      "recreate triggers on the partitioned table",
		})
	}
	slices.SortStableFunc(issues, func(a, b BlockingIssue) int {
		return a.Severity.rank() - b.Severity.rank()
	})
	return issues
}

// ReadinessFor is BLOCKED when any issue has error severity.
func ReadinessFor(issues []BlockingIssue) Readiness {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return ReadinessBlocked
		}
	}
	return ReadinessReady
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(v, s) })
}
