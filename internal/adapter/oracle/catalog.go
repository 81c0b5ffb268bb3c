package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jmoiron/sqlx"
)

const bytesPerMB = 1024 * 1024

var _ port.Catalog = (*Catalog)(nil)

// Catalog reads table facts from the ALL_* dictionary views, so it only sees
// objects the connected user has been granted.
type Catalog struct {
	db *sqlx.DB

	mu       sync.Mutex
	resolved map[string]string
}

func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{db: db, resolved: make(map[string]string)}
}

func (c *Catalog) Dialect() domain.Dialect { return domain.DialectOracle }

// Resolve upper-cases the reference and fills in the owner of a bare name,
// preferring the session's current schema.
func (c *Catalog) Resolve(ctx context.Context, ref domain.TableRef) (domain.TableRef, error) {
	ref = normalize(ref)
	if ref.Owner != "" {
		return ref, nil
	}
	c.mu.Lock()
	owner, ok := c.resolved[ref.Name]
	c.mu.Unlock()
	if ok {
		return domain.TableRef{Owner: owner, Name: ref.Name}, nil
	}

	if err := c.db.GetContext(ctx, &owner, queryResolveOwner, ref.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ref, fmt.Errorf("table %q %w", ref.Name, domain.ErrNotFound)
		}
		return ref, fmt.Errorf("resolving owner for table %q: %w", ref.Name, mapError(err))
	}

	c.mu.Lock()
	c.resolved[ref.Name] = owner
	c.mu.Unlock()
	return domain.TableRef{Owner: owner, Name: ref.Name}, nil
}

type factsRow struct {
	ObjectType  string         `db:"object_type"`
	IOTType     sql.NullString `db:"iot_type"`
	Partitioned sql.NullString `db:"partitioned"`
	NumRows     sql.NullInt64  `db:"num_rows"`
	SizeBytes   float64        `db:"size_bytes"`
}

func (c *Catalog) tableFacts(ctx context.Context, ref domain.TableRef) (factsRow, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return factsRow{}, err
	}
	var f factsRow
	if err := c.db.GetContext(ctx, &f, queryTableFacts, ref.Owner, ref.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return factsRow{}, fmt.Errorf("table %s %w", ref, domain.ErrNotFound)
		}
		return factsRow{}, fmt.Errorf("querying table facts: %w", mapError(err))
	}
	return f, nil
}

func (c *Catalog) GetTableKind(ctx context.Context, ref domain.TableRef) (domain.TableKind, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return "", err
	}
	return tableKind(f.ObjectType, f.IOTType.String, f.Partitioned.String), nil
}

// GetRowCountEstimate reads NUM_ROWS, which stays NULL until statistics are
// gathered.
func (c *Catalog) GetRowCountEstimate(ctx context.Context, ref domain.TableRef) (int64, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return 0, err
	}
	if !f.NumRows.Valid {
		return -1, nil
	}
	return f.NumRows.Int64, nil
}

func (c *Catalog) GetSizeEstimate(ctx context.Context, ref domain.TableRef) (float64, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return 0, err
	}
	return f.SizeBytes / bytesPerMB, nil
}

type columnRow struct {
	Name      string        `db:"column_name"`
	DataType  string        `db:"data_type"`
	Precision sql.NullInt64 `db:"data_precision"`
	Scale     sql.NullInt64 `db:"data_scale"`
	Position  int           `db:"column_id"`
	Nullable  string        `db:"nullable"`
}

func (c *Catalog) GetColumns(ctx context.Context, ref domain.TableRef) ([]domain.ColumnDescriptor, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rows []columnRow
	if err := c.db.SelectContext(ctx, &rows, queryColumns, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying columns: %w", mapError(err))
	}
	cols := make([]domain.ColumnDescriptor, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, domain.ColumnDescriptor{
			Name:     r.Name,
			DataType: columnType(r.DataType, r.Precision, r.Scale),
			Position: r.Position,
			Nullable: r.Nullable == "Y",
		})
	}
	return cols, nil
}

type indexRow struct {
	Name       string `db:"index_name"`
	Uniqueness string `db:"uniqueness"`
	Columns    string `db:"column_list"`
}

func (c *Catalog) GetIndexes(ctx context.Context, ref domain.TableRef) ([]domain.IndexInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rows []indexRow
	if err := c.db.SelectContext(ctx, &rows, queryIndexes, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying indexes: %w", mapError(err))
	}
	idxs := make([]domain.IndexInfo, 0, len(rows))
	for _, r := range rows {
		idxs = append(idxs, domain.IndexInfo{
			Name:    r.Name,
			Columns: splitList(r.Columns),
			Unique:  r.Uniqueness == "UNIQUE",
		})
	}
	return idxs, nil
}

type constraintRow struct {
	Name            string         `db:"constraint_name"`
	Type            string         `db:"constraint_type"`
	Columns         sql.NullString `db:"column_list"`
	ReferencedTable sql.NullString `db:"referenced_table"`
}

func (c *Catalog) GetConstraints(ctx context.Context, ref domain.TableRef) ([]domain.ConstraintInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rows []constraintRow
	if err := c.db.SelectContext(ctx, &rows, queryConstraints, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying constraints: %w", mapError(err))
	}
	cons := make([]domain.ConstraintInfo, 0, len(rows))
	for _, r := range rows {
		cons = append(cons, domain.ConstraintInfo{
			Name:            r.Name,
			Type:            domain.ConstraintType(r.Type),
			Table:           ref.String(),
			Columns:         splitList(r.Columns.String),
			ReferencedTable: r.ReferencedTable.String,
		})
	}
	return cons, nil
}

type triggerRow struct {
	Name   string `db:"trigger_name"`
	Event  string `db:"triggering_event"`
	Status string `db:"status"`
}

func (c *Catalog) GetTriggers(ctx context.Context, ref domain.TableRef) ([]domain.TriggerInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rows []triggerRow
	if err := c.db.SelectContext(ctx, &rows, queryTriggers, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying triggers: %w", mapError(err))
	}
	trgs := make([]domain.TriggerInfo, 0, len(rows))
	for _, r := range rows {
		trgs = append(trgs, domain.TriggerInfo{
			Name:    r.Name,
			Event:   r.Event,
			Enabled: r.Status == "ENABLED",
		})
	}
	return trgs, nil
}

type referencingRow struct {
	Name    string `db:"constraint_name"`
	Table   string `db:"child_table"`
	Columns string `db:"column_list"`
}

func (c *Catalog) GetReferencingConstraints(ctx context.Context, ref domain.TableRef) ([]domain.ConstraintInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rows []referencingRow
	if err := c.db.SelectContext(ctx, &rows, queryReferencingConstraints, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying referencing constraints: %w", mapError(err))
	}
	cons := make([]domain.ConstraintInfo, 0, len(rows))
	for _, r := range rows {
		cons = append(cons, domain.ConstraintInfo{
			Name:            r.Name,
			Type:            domain.ConstraintForeignKey,
			Table:           r.Table,
			Columns:         splitList(r.Columns),
			ReferencedTable: ref.String(),
		})
	}
	return cons, nil
}

type dependentRow struct {
	Type  string `db:"object_type"`
	Owner string `db:"owner"`
	Name  string `db:"name"`
}

// FindReferences walks ALL_DEPENDENCIES for objects built on the table and
// keeps those whose source text mentions the column. View text is a LONG and
// cannot be searched server-side.
func (c *Catalog) FindReferences(ctx context.Context, ref domain.TableRef, column string) ([]domain.ObjectReference, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	var deps []dependentRow
	if err := c.db.SelectContext(ctx, &deps, queryDependents, ref.Owner, ref.Name); err != nil {
		return nil, fmt.Errorf("querying dependents: %w", mapError(err))
	}

	needle := strings.ToUpper(column)
	var refs []domain.ObjectReference
	for _, d := range deps {
		text, err := c.sourceText(ctx, d)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(strings.ToUpper(text), needle) {
			continue
		}
		typ := domain.ObjectRoutine
		if d.Type == "VIEW" {
			typ = domain.ObjectView
		}
		refs = append(refs, domain.ObjectReference{Type: typ, Owner: d.Owner, Name: d.Name, Text: text})
	}
	return refs, nil
}

func (c *Catalog) sourceText(ctx context.Context, d dependentRow) (string, error) {
	if d.Type == "VIEW" {
		var text string
		if err := c.db.GetContext(ctx, &text, queryViewText, d.Owner, d.Name); err != nil {
			return "", fmt.Errorf("reading view %s.%s: %w", d.Owner, d.Name, mapError(err))
		}
		return text, nil
	}
	var lines []string
	if err := c.db.SelectContext(ctx, &lines, querySourceText, d.Owner, d.Name, d.Type); err != nil {
		return "", fmt.Errorf("reading source of %s.%s: %w", d.Owner, d.Name, mapError(err))
	}
	return strings.Join(lines, ""), nil
}
