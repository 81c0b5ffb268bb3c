package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

// ORA codes the adapter maps onto domain errors.
const (
	codeTableNotFound  = 942
	codeInvalidColumn  = 904
	codeNoPrivilege    = 1031
	codeUserCancelled  = 1013
	codeObjectNotExist = 4043
)

var oraCode = regexp.MustCompile(`ORA-(\d{5})`)

// errorCode extracts the ORA-nnnnn code from a driver error, or 0.
func errorCode(err error) int {
	if err == nil {
		return 0
	}
	m := oraCode.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// mapError translates Oracle errors into domain errors, leaving others untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	switch errorCode(err) {
	case codeTableNotFound, codeInvalidColumn, codeObjectNotExist:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case codeNoPrivilege:
		return fmt.Errorf("%w: %w", domain.ErrPrivilege, err)
	}
	return err
}

// probeError prefers the context error over ORA-01013 so callers can tell a
// timeout from a failed query.
func probeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errorCode(err) == codeUserCancelled {
		return fmt.Errorf("%w: %w", context.Canceled, err)
	}
	return mapError(err)
}

// normalize folds unquoted identifiers to upper case the way Oracle does.
func normalize(ref domain.TableRef) domain.TableRef {
	return domain.TableRef{Owner: strings.ToUpper(ref.Owner), Name: strings.ToUpper(ref.Name)}
}

func qualifiedName(ref domain.TableRef) string {
	if ref.Owner == "" {
		return domain.QuoteIdent(ref.Name)
	}
	return domain.QuoteIdent(ref.Owner) + "." + domain.QuoteIdent(ref.Name)
}

// tableKind maps ALL_OBJECTS/ALL_TABLES facts onto a table kind.
func tableKind(objectType, iotType, partitioned string) domain.TableKind {
	switch {
	case objectType == "MATERIALIZED VIEW":
		return domain.TableKindMaterializedView
	case objectType == "VIEW":
		return domain.TableKindView
	case iotType == "IOT":
		return domain.TableKindIndexOrganized
	case partitioned == "YES":
		return domain.TableKindPartitioned
	default:
		return domain.TableKindTable
	}
}

// columnType rebuilds the declared type from ALL_TAB_COLUMNS. NUMBER keeps its
// precision and scale so integer columns can be told apart from decimals.
func columnType(dataType string, precision, scale sql.NullInt64) string {
	if dataType != "NUMBER" || !precision.Valid {
		return dataType
	}
	if !scale.Valid {
		return fmt.Sprintf("NUMBER(%d)", precision.Int64)
	}
	return fmt.Sprintf("NUMBER(%d,%d)", precision.Int64, scale.Int64)
}

// splitList splits a LISTAGG result.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parallelHint renders an optimizer hint for a degree above one.
func parallelHint(degree int) string {
	if degree <= 1 {
		return ""
	}
	return fmt.Sprintf("/*+ PARALLEL(%d) */", degree)
}
