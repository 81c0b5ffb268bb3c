package service

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
)

// TableFacts is the catalog snapshot taken at the start of one analysis.
type TableFacts struct {
	Table       domain.TableDescriptor
	Columns     []domain.ColumnDescriptor
	Indexes     []domain.IndexInfo
	Constraints []domain.ConstraintInfo
	Triggers    []domain.TriggerInfo
}

// PrimaryKey returns the first column of the primary key, or "".
func (f TableFacts) PrimaryKey() string {
	for _, c := range f.Constraints {
		if c.Type == domain.ConstraintPrimaryKey && len(c.Columns) > 0 {
			return c.Columns[0]
		}
	}
	return ""
}

func (f TableFacts) HasLOB() bool {
	for _, c := range f.Columns {
		if c.Category() == domain.CategoryLOB {
			return true
		}
	}
	return false
}

// DependencyAnalyzer enumerates dependent objects and derives blocking issues.
type DependencyAnalyzer struct {
	catalog port.Catalog
	usage   *UsageScorer
}

func NewDependencyAnalyzer(catalog port.Catalog, usage *UsageScorer) *DependencyAnalyzer {
	return &DependencyAnalyzer{catalog: catalog, usage: usage}
}

// Analyze counts dependents of the table and lists, per analyzed column, the
// objects that reference it. Reference lookups that fail leave that column's
// view and routine lists empty.
func (d *DependencyAnalyzer) Analyze(ctx context.Context, facts TableFacts, columns []string) (domain.DependencySummary, []domain.BlockingIssue, error) {
	ref := facts.Table.Ref()
	incoming, err := d.catalog.GetReferencingConstraints(ctx, ref)
	if err != nil {
		return domain.DependencySummary{}, nil, &domain.CatalogAccessError{Op: "referencing constraints", Table: ref, Err: err}
	}

	summary := domain.DependencySummary{
		IndexCount:       len(facts.Indexes),
		ConstraintCount:  len(facts.Constraints),
		TriggerCount:     len(facts.Triggers),
		ReferencingCount: len(incoming),
	}
	for _, c := range facts.Constraints {
		if c.Type == domain.ConstraintForeignKey {
			summary.ForeignKeyCount++
		}
	}

	for _, col := range columns {
		refs, err := d.usage.References(ctx, col)
		if err != nil && ctx.Err() != nil {
			return domain.DependencySummary{}, nil, ctx.Err()
		}
		summary.Columns = append(summary.Columns,
			domain.ColumnDependenciesFor(col, facts.Indexes, facts.Constraints, refs))
	}

	return summary, domain.BlockingIssues(facts.Table, summary), nil
}

// StructureFacts condenses the summary for the complexity and downtime scores.
// Foreign keys count in both directions.
func StructureFacts(facts TableFacts, summary domain.DependencySummary) domain.StructureFacts {
	return domain.StructureFacts{
		Indexes:     summary.IndexCount,
		Constraints: summary.ConstraintCount,
		ForeignKeys: summary.ForeignKeyCount + summary.ReferencingCount,
		Triggers:    summary.TriggerCount,
		HasLOB:      facts.HasLOB(),
	}
}
