package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// schemaFilter returns a SQL WHERE clause fragment and args for filtering by schema.
// paramOffset is the starting $N parameter index (1-based).
// When schemas is empty, it excludes system schemas.
func schemaFilter(schemas []string, column string, paramOffset int) (clause string, args []any) {
	if len(schemas) == 0 {
		return fmt.Sprintf("%s NOT IN ('pg_catalog', 'information_schema', 'pg_toast')", column), nil
	}
	placeholders := make([]string, len(schemas))
	args = make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = fmt.Sprintf("$%d", paramOffset+i)
		args[i] = s
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

// qualifiedName renders a resolved table reference as a quoted identifier.
func qualifiedName(ref domain.TableRef) string {
	if ref.Owner == "" {
		return domain.QuoteIdent(ref.Name)
	}
	return domain.QuoteIdent(ref.Owner) + "." + domain.QuoteIdent(ref.Name)
}

// SQLSTATE codes mapped onto domain sentinels.
const (
	codeUndefinedTable        = "42P01"
	codeUndefinedColumn       = "42703"
	codeInsufficientPrivilege = "42501"
	codeQueryCanceled         = "57014"
)

// mapError translates driver errors into domain sentinels while keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUndefinedTable, codeUndefinedColumn:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case codeInsufficientPrivilege:
		return fmt.Errorf("%w: %w", domain.ErrPrivilege, err)
	}
	return err
}

// relKind maps pg_class.relkind onto a table kind.
func relKind(k string) domain.TableKind {
	switch k {
	case "p":
		return domain.TableKindPartitioned
	case "m":
		return domain.TableKindMaterializedView
	case "v":
		return domain.TableKindView
	default:
		return domain.TableKindTable
	}
}

// conType maps pg_constraint.contype onto the shared constraint codes.
func conType(t string) domain.ConstraintType {
	switch t {
	case "p":
		return domain.ConstraintPrimaryKey
	case "u":
		return domain.ConstraintUnique
	case "f":
		return domain.ConstraintForeignKey
	default:
		return domain.ConstraintCheck
	}
}
