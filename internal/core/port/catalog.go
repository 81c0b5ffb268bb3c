package port

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

// Catalog supplies metadata facts about a table. Implementations return
// domain.ErrNotFound when the table does not exist and domain.ErrPrivilege when
// the session may not read it.
type Catalog interface {
	Dialect() domain.Dialect
	GetTableKind(ctx context.Context, table domain.TableRef) (domain.TableKind, error)
	// GetRowCountEstimate returns -1 when the catalog holds no statistics.
	GetRowCountEstimate(ctx context.Context, table domain.TableRef) (int64, error)
	GetSizeEstimate(ctx context.Context, table domain.TableRef) (float64, error)
	GetColumns(ctx context.Context, table domain.TableRef) ([]domain.ColumnDescriptor, error)
	GetIndexes(ctx context.Context, table domain.TableRef) ([]domain.IndexInfo, error)
	GetConstraints(ctx context.Context, table domain.TableRef) ([]domain.ConstraintInfo, error)
	GetTriggers(ctx context.Context, table domain.TableRef) ([]domain.TriggerInfo, error)
	// GetReferencingConstraints lists foreign keys in other tables that point at table.
	GetReferencingConstraints(ctx context.Context, table domain.TableRef) ([]domain.ConstraintInfo, error)
	// FindReferences lists views and routines whose source mentions column.
	FindReferences(ctx context.Context, table domain.TableRef, column string) ([]domain.ObjectReference, error)
}
