package domain

import (
	"strings"
	"time"
)

// TableKind describes the physical shape of a table as reported by the catalog.
type TableKind string

const (
	TableKindTable            TableKind = "table"
	TableKindPartitioned      TableKind = "partitioned"
	TableKindIndexOrganized   TableKind = "index_organized"
	TableKindMaterializedView TableKind = "materialized_view"
	TableKindView             TableKind = "view"
)

// TableRef identifies a table by owner (schema) and name.
type TableRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r TableRef) String() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "." + r.Name
}

// ParseTableRef splits "owner.table" into a TableRef. A bare name leaves Owner empty.
func ParseTableRef(s string) TableRef {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "."); i > 0 {
		return TableRef{Owner: s[:i], Name: s[i+1:]}
	}
	return TableRef{Name: s}
}

// TableDescriptor is the snapshot of table facts taken at analysis start.
type TableDescriptor struct {
	Owner    string    `json:"owner"`
	Name     string    `json:"name"`
	RowCount int64     `json:"row_count"`
	SizeMB   float64   `json:"size_mb"`
	Kind     TableKind `json:"kind"`
}

func (t TableDescriptor) Ref() TableRef {
	return TableRef{Owner: t.Owner, Name: t.Name}
}

// ColumnCategory is the coarse type family a declared column type belongs to.
type ColumnCategory string

const (
	CategoryTemporal ColumnCategory = "temporal"
	CategoryInteger  ColumnCategory = "integer"
	CategoryText     ColumnCategory = "text"
	CategoryLOB      ColumnCategory = "lob"
	CategoryOther    ColumnCategory = "other"
)

type ColumnDescriptor struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Position int    `json:"position"`
	Nullable bool   `json:"nullable"`
}

// Category classifies the declared type. Both Postgres and Oracle spellings are
// recognised; NUMBER with a non-zero scale is not an integer.
func (c ColumnDescriptor) Category() ColumnCategory {
	t := strings.ToLower(strings.TrimSpace(c.DataType))
	switch {
	case t == "date", strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"):
		return CategoryTemporal
	case isLOBType(t):
		return CategoryLOB
	case isIntegerType(t):
		return CategoryInteger
	case isTextType(t):
		return CategoryText
	default:
		return CategoryOther
	}
}

func isLOBType(t string) bool {
	switch t {
	case "clob", "nclob", "blob", "bfile", "long", "long raw", "bytea", "xmltype", "xml":
		return true
	}
	return false
}

func isIntegerType(t string) bool {
	switch t {
	case "integer", "int", "bigint", "smallint", "int2", "int4", "int8", "number", "serial", "bigserial":
		return true
	}
	// NUMBER(p) / NUMBER(p,0) / NUMERIC(p,0)
	for _, prefix := range []string{"number(", "numeric("} {
		if !strings.HasPrefix(t, prefix) || !strings.HasSuffix(t, ")") {
			continue
		}
		args := strings.Split(strings.TrimSuffix(strings.TrimPrefix(t, prefix), ")"), ",")
		return len(args) == 1 || strings.TrimSpace(args[1]) == "0"
	}
	return false
}

func isTextType(t string) bool {
	for _, prefix := range []string{"varchar", "nvarchar", "char", "nchar", "character", "text"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// ConstraintType mirrors the single-letter catalog codes used by both dialects.
type ConstraintType string

const (
	ConstraintPrimaryKey ConstraintType = "P"
	ConstraintUnique     ConstraintType = "U"
	ConstraintForeignKey ConstraintType = "R"
	ConstraintCheck      ConstraintType = "C"
)

type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

type ConstraintInfo struct {
	Name            string         `json:"name"`
	Type            ConstraintType `json:"type"`
	Table           string         `json:"table,omitempty"`
	Columns         []string       `json:"columns"`
	ReferencedTable string         `json:"referenced_table,omitempty"`
}

type TriggerInfo struct {
	Name    string `json:"name"`
	Event   string `json:"event"`
	Enabled bool   `json:"enabled"`
}

// ObjectType is the kind of database object that references a column.
type ObjectType string

const (
	ObjectView    ObjectType = "view"
	ObjectRoutine ObjectType = "routine"
)

// ObjectReference is a view or stored routine whose source text mentions a column.
type ObjectReference struct {
	Type  ObjectType `json:"type"`
	Owner string     `json:"owner"`
	Name  string     `json:"name"`
	Text  string     `json:"-"`
}

// DateRange is the result of one bounded min/max probe on a temporal column.
// ClockMin and ClockMax hold the HH24:MI:SS portion of the bounds as the
// database formatted it.
type DateRange struct {
	Min      *time.Time
	Max      *time.Time
	Total    int64
	NonNull  int64
	ClockMin string
	ClockMax string
}

// NumericRange is the result of a min/max/count probe on an integer column.
type NumericRange struct {
	Min   *int64
	Max   *int64
	Count int64
}

// YearBounds restricts a probe to rows whose year falls in [Min, Max].
type YearBounds struct {
	Min int
	Max int
}

// Dialect selects the SQL flavour used for generated conversion expressions.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectOracle   Dialect = "oracle"
)

func (d Dialect) Valid() bool {
	return d == DialectPostgres || d == DialectOracle
}

// QuoteIdent quotes an identifier for use inside a generated expression.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
