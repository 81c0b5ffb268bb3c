package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateFormat names a non-standard date encoding.
type DateFormat string

const (
	FormatYYYYMMDD     DateFormat = "YYYYMMDD"
	FormatEpochSeconds DateFormat = "UNIX_EPOCH_SECONDS"
	FormatYYMMDD       DateFormat = "YYMMDD"
	FormatISODate      DateFormat = "ISO_DATE"
	FormatDayMonthYear DateFormat = "DD/MM/YYYY"
	FormatMonthDayYear DateFormat = "MM/DD/YYYY"
	FormatCompactText  DateFormat = "YYYYMMDD_TEXT"
	FormatISODateTime  DateFormat = "ISO_DATETIME"
)

// NonStandardCandidate is a numeric or text column that encodes a date.
// Expression converts the raw column to a date and is never executed here.
type NonStandardCandidate struct {
	Column     string     `json:"column"`
	DataType   string     `json:"data_type"`
	Format     DateFormat `json:"format"`
	Expression string     `json:"expression"`
	Rationale  string     `json:"rationale"`
}

var dateLikeTokens = []string{
	"date", "dt", "day", "time", "ts", "period", "yyyymmdd",
	"epoch", "created", "updated", "modified", "load",
}

// DateLikeName reports whether a column name follows a date naming convention.
func DateLikeName(name string) bool {
	n := strings.ToLower(name)
	for _, tok := range dateLikeTokens {
		if strings.Contains(n, tok) {
			return true
		}
	}
	return false
}

const (
	minEpoch  = 1_000_000_000 // 2001-09-09, the smallest 10-digit value
	maxYYMMDD = 991231
	minYYMMDD = 101
)

// ClassifyNumericRange applies the numeric encoding rules in order and returns
// the first format that fits both bounds. Packed dates and epoch seconds must
// fall within the sane-year window of th.
func ClassifyNumericRange(r NumericRange, th Thresholds) (DateFormat, bool) {
	if r.Min == nil || r.Max == nil || r.Count == 0 {
		return "", false
	}
	lo, hi := *r.Min, *r.Max
	minPacked := int64(th.MinSaneYear)*10000 + 101
	maxPacked := int64(th.MaxSaneYear)*10000 + 1231
	maxEpoch := time.Date(th.MaxSaneYear, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	switch {
	case lo >= minPacked && hi <= maxPacked && validMonthDay(lo) && validMonthDay(hi):
		return FormatYYYYMMDD, true
	case lo >= minEpoch && hi <= maxEpoch:
		return FormatEpochSeconds, true
	case lo >= minYYMMDD && hi <= maxYYMMDD && validMonthDay(lo) && validMonthDay(hi):
		return FormatYYMMDD, true
	}
	return "", false
}

// validMonthDay checks the trailing MMDD digits of a packed date.
func validMonthDay(v int64) bool {
	month, day := v/100%100, v%100
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// TextDatePattern is one textual encoding tried by the text pass. Layout is the
// Go reference layout used to pre-check a sampled value; DBFormat is the
// database format string passed to the format-match probe.
type TextDatePattern struct {
	Format   DateFormat
	Layout   string
	Regex    *regexp.Regexp
	DBFormat string
}

// TextDatePatterns lists the textual encodings in the order they are tried.
var TextDatePatterns = []TextDatePattern{
	{FormatISODate, "2006-01-02", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "YYYY-MM-DD"},
	{FormatDayMonthYear, "02/01/2006", regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "DD/MM/YYYY"},
	{FormatMonthDayYear, "01/02/2006", regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "MM/DD/YYYY"},
	{FormatCompactText, "20060102", regexp.MustCompile(`^\d{8}$`), "YYYYMMDD"},
	{FormatISODateTime, "2006-01-02T15:04:05", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), `YYYY-MM-DD"T"HH24:MI:SS`},
}

// Accepts reports whether a sampled value parses under the pattern.
func (p TextDatePattern) Accepts(value string) bool {
	v := strings.TrimSpace(value)
	if !p.Regex.MatchString(v) {
		return false
	}
	if len(v) > len(p.Layout) {
		v = v[:len(p.Layout)]
	}
	_, err := time.Parse(p.Layout, v)
	return err == nil
}

// ConversionExpression returns the dialect's expression that turns the raw
// column into a date.
func ConversionExpression(d Dialect, column string, f DateFormat) string {
	col := QuoteIdent(column)
	if d == DialectOracle {
		return oracleConversion(col, f)
	}
	return postgresConversion(col, f)
}

func postgresConversion(col string, f DateFormat) string {
	switch f {
	case FormatYYYYMMDD:
		return fmt.Sprintf("to_date(%s::text, 'YYYYMMDD')", col)
	case FormatEpochSeconds:
		return fmt.Sprintf("to_timestamp(%s)", col)
	case FormatYYMMDD:
		return fmt.Sprintf("to_date(lpad(%s::text, 6, '0'), 'YYMMDD')", col)
	case FormatISODateTime:
		return fmt.Sprintf(`to_timestamp(%s, 'YYYY-MM-DD"T"HH24:MI:SS')`, col)
	default:
		return fmt.Sprintf("to_date(%s, '%s')", col, textDBFormat(f))
	}
}

func oracleConversion(col string, f DateFormat) string {
	switch f {
	case FormatYYYYMMDD:
		return fmt.Sprintf("TO_DATE(TO_CHAR(%s), 'YYYYMMDD')", col)
	case FormatEpochSeconds:
		return fmt.Sprintf("DATE '1970-01-01' + NUMTODSINTERVAL(%s, 'SECOND')", col)
	case FormatYYMMDD:
		return fmt.Sprintf("TO_DATE(LPAD(TO_CHAR(%s), 6, '0'), 'YYMMDD')", col)
	case FormatISODateTime:
		return fmt.Sprintf(`TO_DATE(SUBSTR(%s, 1, 19), 'YYYY-MM-DD"T"HH24:MI:SS')`, col)
	default:
		return fmt.Sprintf("TO_DATE(%s, '%s')", col, textDBFormat(f))
	}
}

func textDBFormat(f DateFormat) string {
	for _, p := range TextDatePatterns {
		if p.Format == f {
			return p.DBFormat
		}
	}
	return string(f)
}

// NewNonStandardCandidate builds a candidate with its conversion expression.
func NewNonStandardCandidate(d Dialect, col ColumnDescriptor, f DateFormat, evidence string) NonStandardCandidate {
	return NonStandardCandidate{
		Column:     col.Name,
		DataType:   col.DataType,
		Format:     f,
		Expression: ConversionExpression(d, col.Name, f),
		Rationale:  fmt.Sprintf("%s column %s encodes dates as %s (%s)", col.Category(), col.Name, f, evidence),
	}
}
