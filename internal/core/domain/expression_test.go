package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateExpression(t *testing.T) {
	t.Parallel()
	for _, f := range []DateFormat{FormatYYYYMMDD, FormatEpochSeconds, FormatYYMMDD, FormatISODate, FormatDayMonthYear, FormatISODateTime} {
		expr := ConversionExpression(DialectPostgres, "d_key", f)
		assert.NoError(t, ValidateExpression(expr), expr)
	}
}

func TestValidateExpression_Rejects(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, ValidateExpression("  "), ErrEmptyExpression)
	assert.ErrorIs(t, ValidateExpression("a, b"), ErrNotExpression)
	assert.Error(t, ValidateExpression("to_date(("))
	assert.Error(t, ValidateExpression("1 FROM x; DROP TABLE y; SELECT 1"))
}
