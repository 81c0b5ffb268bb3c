package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bytesPerMB = 1024 * 1024

var _ port.Catalog = (*Catalog)(nil)

// Catalog reads table facts from the PostgreSQL system catalogs.
type Catalog struct {
	pool    *pgxpool.Pool
	schemas []string // empty means all non-system schemas

	mu       sync.Mutex
	resolved map[string]string
}

func NewCatalog(pool *pgxpool.Pool, schemas []string) *Catalog {
	return &Catalog{pool: pool, schemas: schemas, resolved: make(map[string]string)}
}

func (c *Catalog) Dialect() domain.Dialect { return domain.DialectPostgres }

// Resolve fills in the schema of a bare table name, preferring schemas on the
// session search path.
func (c *Catalog) Resolve(ctx context.Context, ref domain.TableRef) (domain.TableRef, error) {
	if ref.Owner != "" {
		return ref, nil
	}
	c.mu.Lock()
	schema, ok := c.resolved[ref.Name]
	c.mu.Unlock()
	if ok {
		return domain.TableRef{Owner: schema, Name: ref.Name}, nil
	}

	filter, filterArgs := schemaFilter(c.schemas, "n.nspname", 2) // $1 is tableName
	query := fmt.Sprintf(queryResolveSchema, filter)
	args := append([]any{ref.Name}, filterArgs...)

	if err := c.pool.QueryRow(ctx, query, args...).Scan(&schema); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ref, fmt.Errorf("table %q %w", ref.Name, domain.ErrNotFound)
		}
		return ref, fmt.Errorf("resolving schema for table %q: %w", ref.Name, mapError(err))
	}

	c.mu.Lock()
	c.resolved[ref.Name] = schema
	c.mu.Unlock()
	return domain.TableRef{Owner: schema, Name: ref.Name}, nil
}

type tableFacts struct {
	kind  string
	rows  int64
	bytes int64
}

func (c *Catalog) tableFacts(ctx context.Context, ref domain.TableRef) (tableFacts, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return tableFacts{}, err
	}
	var f tableFacts
	err = c.pool.QueryRow(ctx, queryTableFacts, ref.Owner, ref.Name).Scan(&f.kind, &f.rows, &f.bytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tableFacts{}, fmt.Errorf("table %s %w", ref, domain.ErrNotFound)
		}
		return tableFacts{}, fmt.Errorf("querying table facts: %w", mapError(err))
	}
	return f, nil
}

func (c *Catalog) GetTableKind(ctx context.Context, ref domain.TableRef) (domain.TableKind, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return "", err
	}
	return relKind(f.kind), nil
}

func (c *Catalog) GetRowCountEstimate(ctx context.Context, ref domain.TableRef) (int64, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return 0, err
	}
	if f.rows < 0 {
		return -1, nil
	}
	return f.rows, nil
}

func (c *Catalog) GetSizeEstimate(ctx context.Context, ref domain.TableRef) (float64, error) {
	f, err := c.tableFacts(ctx, ref)
	if err != nil {
		return 0, err
	}
	return float64(f.bytes) / bytesPerMB, nil
}

func (c *Catalog) GetColumns(ctx context.Context, ref domain.TableRef) ([]domain.ColumnDescriptor, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, queryColumns, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", mapError(err))
	}
	defer rows.Close()

	var cols []domain.ColumnDescriptor
	for rows.Next() {
		var col domain.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.Position, &col.Nullable); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, mapError(rows.Err())
}

func (c *Catalog) GetIndexes(ctx context.Context, ref domain.TableRef) ([]domain.IndexInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, queryIndexes, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", mapError(err))
	}
	defer rows.Close()

	var idxs []domain.IndexInfo
	for rows.Next() {
		var idx domain.IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Unique, &idx.Columns); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		idxs = append(idxs, idx)
	}
	return idxs, mapError(rows.Err())
}

func (c *Catalog) GetConstraints(ctx context.Context, ref domain.TableRef) ([]domain.ConstraintInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, queryConstraints, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("querying constraints: %w", mapError(err))
	}
	defer rows.Close()

	var cons []domain.ConstraintInfo
	for rows.Next() {
		var (
			con     domain.ConstraintInfo
			contype string
		)
		if err := rows.Scan(&con.Name, &contype, &con.Columns, &con.ReferencedTable); err != nil {
			return nil, fmt.Errorf("scanning constraint: %w", err)
		}
		con.Type = conType(contype)
		con.Table = ref.String()
		cons = append(cons, con)
	}
	return cons, mapError(rows.Err())
}

func (c *Catalog) GetTriggers(ctx context.Context, ref domain.TableRef) ([]domain.TriggerInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, queryTriggers, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", mapError(err))
	}
	defer rows.Close()

	var trgs []domain.TriggerInfo
	for rows.Next() {
		var trg domain.TriggerInfo
		if err := rows.Scan(&trg.Name, &trg.Event, &trg.Enabled); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		trgs = append(trgs, trg)
	}
	return trgs, mapError(rows.Err())
}

func (c *Catalog) GetReferencingConstraints(ctx context.Context, ref domain.TableRef) ([]domain.ConstraintInfo, error) {
	ref, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, queryReferencingConstraints, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("querying referencing constraints: %w", mapError(err))
	}
	defer rows.Close()

	var cons []domain.ConstraintInfo
	for rows.Next() {
		con := domain.ConstraintInfo{Type: domain.ConstraintForeignKey, ReferencedTable: ref.String()}
		if err := rows.Scan(&con.Name, &con.Table, &con.Columns); err != nil {
			return nil, fmt.Errorf("scanning referencing constraint: %w", err)
		}
		cons = append(cons, con)
	}
	return cons, mapError(rows.Err())
}

func (c *Catalog) FindReferences(ctx context.Context, ref domain.TableRef, column string) ([]domain.ObjectReference, error) {
	rows, err := c.pool.Query(ctx, queryFindReferences, ref.Name, column)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", mapError(err))
	}
	defer rows.Close()

	var refs []domain.ObjectReference
	for rows.Next() {
		var (
			r   domain.ObjectReference
			typ string
		)
		if err := rows.Scan(&typ, &r.Owner, &r.Name, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		r.Type = domain.ObjectType(typ)
		refs = append(refs, r)
	}
	return refs, mapError(rows.Err())
}
