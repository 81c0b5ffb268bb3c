package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
)

// UsageScorer ranks columns by how strongly indexes, views and routines rely on
// them. It caches reference lookups per column for the lifetime of one
// analysis, so create one per run.
type UsageScorer struct {
	catalog port.Catalog
	table   domain.TableRef
	weights domain.UsageWeights
	logger  *slog.Logger
	refs    map[string][]domain.ObjectReference
}

func NewUsageScorer(catalog port.Catalog, table domain.TableRef, weights domain.UsageWeights, logger *slog.Logger) *UsageScorer {
	return &UsageScorer{
		catalog: catalog,
		table:   table,
		weights: weights,
		logger:  logger,
		refs:    make(map[string][]domain.ObjectReference),
	}
}

// References returns the views and routines that mention column.
func (u *UsageScorer) References(ctx context.Context, column string) ([]domain.ObjectReference, error) {
	key := strings.ToLower(column)
	if refs, ok := u.refs[key]; ok {
		return refs, nil
	}
	refs, err := u.catalog.FindReferences(ctx, u.table, column)
	if err != nil {
		return nil, fmt.Errorf("finding references to %s: %w", column, err)
	}
	u.refs[key] = refs
	return refs, nil
}

// Score computes the usage score of column. When references cannot be read the
// score falls back to index membership and a warning is returned.
func (u *UsageScorer) Score(ctx context.Context, column string, indexes []domain.IndexInfo) (int, *domain.Warning, error) {
	refs, err := u.References(ctx, column)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		u.logger.WarnContext(ctx, "reference lookup failed",
			slog.String("db.collection.name", u.table.String()),
			slog.String("column", column),
			slog.String("error.type", domain.ErrorClass(err)),
		)
		w := &domain.Warning{
			Code:    domain.WarnReferencesUnavailable,
			Column:  column,
			Message: fmt.Sprintf("usage score counts indexes only: %v", err),
		}
		return domain.UsageScore(column, indexes, nil, u.weights), w, nil
	}
	return domain.UsageScore(column, indexes, refs, u.weights), nil, nil
}
