package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrNotExpression   = errors.New("not a single scalar expression")
)

// ValidateExpression checks that a generated PostgreSQL key expression parses
// as exactly one select target. It is a syntax check only; the expression is
// never run.
func ValidateExpression(expr string) error {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return ErrEmptyExpression
	}

	tree, err := pg_query.Parse("SELECT " + trimmed + " FROM t")
	if err != nil {
		return fmt.Errorf("parsing expression: %w", err)
	}
	if len(tree.Stmts) != 1 || tree.Stmts[0].Stmt == nil {
		return ErrNotExpression
	}

	sel, ok := tree.Stmts[0].Stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok || sel.SelectStmt == nil || len(sel.SelectStmt.TargetList) != 1 {
		return ErrNotExpression
	}
	return nil
}
