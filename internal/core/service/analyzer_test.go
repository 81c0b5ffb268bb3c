package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func col(name, dataType string, pos int) domain.ColumnDescriptor {
	return domain.ColumnDescriptor{Name: name, DataType: dataType, Position: pos, Nullable: true}
}

func newTestAnalyzer(c port.Catalog, s port.Sampler, store port.TaskStore) *Analyzer {
	return NewAnalyzer(c, s, store, domain.DefaultThresholds(), testLogger(), nil, nil)
}

func cleanRange(from, to string) domain.DateRange {
	return domain.DateRange{Min: day(from), Max: day(to), Total: 1000, NonNull: 1000, ClockMin: "00:00:00", ClockMax: "00:00:00"}
}

func TestAnalyzeTable_CleanDateSpanningYears(t *testing.T) {
	catalog := &mockCatalog{
		rows:    100_000,
		sizeMB:  512,
		columns: []domain.ColumnDescriptor{col("order_date", "date", 2), col("id", "bigint", 1)},
	}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2021-01-01", "2023-12-31")}}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.ParseTableRef("sales.orders"))
	require.NoError(t, err)

	assert.Equal(t, domain.ArchetypeNone, res.Stereotype.Archetype)
	require.NotNil(t, res.Selected)
	assert.Equal(t, "order_date", res.Selected.Column)
	assert.Equal(t, domain.SchemeRange, res.Recommendation.Scheme)
	assert.Equal(t, "order_date", res.Recommendation.Key)
	assert.Equal(t, domain.GranularityMonthly, res.Recommendation.Granularity)
	assert.Contains(t, res.Recommendation.Rationale, "years")
	assert.Equal(t, domain.SourceGeneral, res.Recommendation.Source)
	assert.Equal(t, domain.ReadinessReady, res.Readiness)
	assert.Equal(t, 1, res.Complexity)
	assert.Equal(t, 1, res.ParallelHint)
	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.Empty(t, res.BlockingIssues)
	assert.Empty(t, res.Candidates.NonStandard)
}

func TestAnalyzeTable_HashForLargeTableWithoutDates(t *testing.T) {
	catalog := &mockCatalog{
		rows:        20_000_000,
		sizeMB:      4096,
		columns:     []domain.ColumnDescriptor{col("id", "bigint", 1), col("name", "text", 2)},
		indexes:     []domain.IndexInfo{{Name: "accounts_pkey", Columns: []string{"id"}, Unique: true}},
		constraints: []domain.ConstraintInfo{{Name: "accounts_pkey", Type: domain.ConstraintPrimaryKey, Columns: []string{"id"}}},
	}
	res, err := newTestAnalyzer(catalog, &mockSampler{}, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Owner: "app", Name: "accounts"})
	require.NoError(t, err)

	assert.Nil(t, res.Selected)
	assert.Equal(t, domain.SchemeHash, res.Recommendation.Scheme)
	assert.Equal(t, "id", res.Recommendation.Key)
	assert.Equal(t, 16, res.Recommendation.PartitionCount)
	assert.Greater(t, res.ParallelHint, 1)
}

func TestAnalyzeTable_QualityFlaggedColumnLoses(t *testing.T) {
	catalog := &mockCatalog{
		rows: 50_000,
		columns: []domain.ColumnDescriptor{
			col("legacy_date", "date", 1),
			col("ship_date", "date", 2),
		},
		indexes: []domain.IndexInfo{{Name: "ix_legacy", Columns: []string{"legacy_date"}}},
	}
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{
			"legacy_date": cleanRange("0001-01-01", "9999-12-31"),
			"ship_date":   cleanRange("2023-01-01", "2024-02-05"),
		},
		filtered: map[string]domain.DateRange{
			"legacy_date": cleanRange("2001-01-01", "2020-01-01"),
		},
	}
	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "shipments"})
	require.NoError(t, err)

	require.Len(t, res.Candidates.Profiles, 2)
	require.NotNil(t, res.Selected)
	assert.Equal(t, "ship_date", res.Selected.Column)
	assert.Equal(t, domain.SchemeRange, res.Recommendation.Scheme)
	assert.Equal(t, domain.GranularityMonthly, res.Recommendation.Granularity)
	assert.Contains(t, warningCodes(res.Warnings), "implausible_years:legacy_date")
	assert.Equal(t, 2, sampler.probed(port.ProbeDateRange, "legacy_date"))
}

func TestAnalyzeTable_StagingStereotype(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("id", "bigint", 1), col("load_ts", "timestamp", 2), col("order_date", "date", 3)},
	}
	loadRange := cleanRange("2024-01-01", "2024-06-01")
	loadRange.ClockMax = "12:30:00"
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{"load_ts": loadRange},
		days:   map[string]int64{"load_ts": 150},
	}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "stg_orders"})
	require.NoError(t, err)

	assert.Equal(t, domain.ArchetypeStagingArea, res.Stereotype.Archetype)
	assert.Equal(t, domain.SchemeRange, res.Recommendation.Scheme)
	assert.Equal(t, "load_ts", res.Recommendation.Key)
	assert.Equal(t, domain.GranularityDaily, res.Recommendation.Granularity)
	assert.Equal(t, domain.SourceStereotype, res.Recommendation.Source)
	assert.Contains(t, res.Recommendation.Rationale, "stereotype: staging-area")
	require.NotNil(t, res.Selected)
	require.NotNil(t, res.Selected.DistinctDays)
	assert.Equal(t, int64(150), *res.Selected.DistinctDays)
	// The other temporal column is never probed once the stereotype holds.
	assert.Zero(t, sampler.probed(port.ProbeDateRange, "order_date"))
	// The clock already showed a time of day.
	assert.Zero(t, sampler.probed(port.ProbeTimeComponent, "load_ts"))
}

func TestAnalyzeTable_SparseDailyKeyWarns(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("id", "bigint", 1), col("load_ts", "timestamp", 2)},
	}
	loadRange := cleanRange("2024-01-01", "2024-06-01")
	loadRange.ClockMax = "12:30:00"
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{"load_ts": loadRange},
		days:   map[string]int64{"load_ts": 20},
	}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "stg_orders"})
	require.NoError(t, err)

	assert.Equal(t, domain.GranularityDaily, res.Recommendation.Granularity)
	assert.Contains(t, warningCodes(res.Warnings), "sparse_days:load_ts")
}

func TestAnalyzeTable_FlaggedStereotypeFallsThrough(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("load_ts", "timestamp", 1), col("order_date", "date", 2)},
	}
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{
			"load_ts":    cleanRange("0001-01-01", "2024-06-01"),
			"order_date": cleanRange("2022-01-01", "2023-06-01"),
		},
		filtered: map[string]domain.DateRange{"load_ts": cleanRange("2024-01-01", "2024-06-01")},
	}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "stg_orders"})
	require.NoError(t, err)

	assert.Equal(t, domain.ArchetypeStagingArea, res.Stereotype.Archetype)
	assert.Equal(t, domain.SourceGeneral, res.Recommendation.Source)
	assert.Equal(t, "order_date", res.Recommendation.Key)
	assert.NotContains(t, res.Recommendation.Rationale, "stereotype")
	assert.Contains(t, warningCodes(res.Warnings), "stereotype_rejected:load_ts")
	// The stereotype column profile is reused, not probed again.
	assert.Equal(t, 2, sampler.probed(port.ProbeDateRange, "load_ts"))
}

func TestAnalyzeTable_NonStandardIntegerDate(t *testing.T) {
	catalog := &mockCatalog{
		rows:    5000,
		columns: []domain.ColumnDescriptor{col("sale_date_key", "integer", 1), col("amount", "numeric(10,2)", 2)},
	}
	sampler := &mockSampler{numeric: map[string]domain.NumericRange{
		"sale_date_key": {Min: i64(20180101), Max: i64(20231231), Count: 5000},
	}}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "sales"})
	require.NoError(t, err)

	require.Len(t, res.Candidates.NonStandard, 1)
	assert.Equal(t, domain.FormatYYYYMMDD, res.Candidates.NonStandard[0].Format)
	assert.Equal(t, domain.SchemeRange, res.Recommendation.Scheme)
	assert.Equal(t, domain.GranularityMonthly, res.Recommendation.Granularity)
	assert.Equal(t, `to_date("sale_date_key"::text, 'YYYYMMDD')`, res.Recommendation.Key)
	require.NotNil(t, res.Recommendation.Conversion)
	assert.Contains(t, warningCodes(res.Warnings), "non_standard_date:sale_date_key")
	require.Len(t, res.Dependencies.Columns, 1)
	assert.Equal(t, "sale_date_key", res.Dependencies.Columns[0].Column)
}

func TestAnalyzeTable_SamplingFailureExcludesColumn(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("broken_date", "date", 1), col("order_date", "date", 2)},
	}
	sampler := &mockSampler{
		ranges:      map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")},
		failColumns: map[string]error{"broken_date": domain.ErrPrivilege},
	}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)

	require.Len(t, res.Candidates.Profiles, 1)
	assert.Equal(t, "order_date", res.Selected.Column)
	assert.Contains(t, warningCodes(res.Warnings), "sampling_failed:broken_date")
}

func TestAnalyzeTable_BlockingAndComplexity(t *testing.T) {
	catalog := &mockCatalog{
		kind:    domain.TableKindMaterializedView,
		rows:    10_000,
		sizeMB:  2048,
		columns: []domain.ColumnDescriptor{col("id", "bigint", 1), col("doc", "bytea", 2), col("order_date", "date", 3)},
		indexes: []domain.IndexInfo{{Name: "ix1", Columns: []string{"order_date"}}, {Name: "ix2", Columns: []string{"id"}}},
		constraints: []domain.ConstraintInfo{
			{Name: "fk_customer", Type: domain.ConstraintForeignKey, Columns: []string{"id"}, ReferencedTable: "customers"},
		},
		triggers: []domain.TriggerInfo{{Name: "trg_audit", Event: "UPDATE", Enabled: true}},
		incoming: []domain.ConstraintInfo{{Name: "fk_lines_order", Type: domain.ConstraintForeignKey, Table: "order_lines"}},
	}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")}}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "orders_mv"})
	require.NoError(t, err)

	assert.Equal(t, domain.ReadinessBlocked, res.Readiness)
	require.NotEmpty(t, res.BlockingIssues)
	assert.Equal(t, domain.SeverityError, res.BlockingIssues[0].Severity)
	assert.Equal(t, 1, res.Dependencies.ReferencingCount)
	assert.Equal(t, 1, res.Dependencies.ForeignKeyCount)
	// 1 + 2*0.5 + 1*0.3 + 2 (fk) + 1 (trigger) + 1 (lob) = 6.3
	assert.Equal(t, 6, res.Complexity)
	assert.Greater(t, res.DowntimeMinutes, 0.0)
}

func TestAnalyzeTable_ReferencesLookedUpOncePerColumn(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("order_date", "date", 1)},
		refs: map[string][]domain.ObjectReference{
			"order_date": {{Type: domain.ObjectView, Name: "v_recent", Text: "SELECT id FROM orders WHERE order_date > now()"}},
		},
	}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")}}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.findRefsCalls["order_date"])
	assert.Equal(t, 3, res.Selected.UsageScore)
	require.Len(t, res.Dependencies.Columns, 1)
	assert.Equal(t, []string{"v_recent"}, res.Dependencies.Columns[0].Views)
}

func TestAnalyzeTable_ReferenceLookupFailureDegradesToIndexes(t *testing.T) {
	catalog := &mockCatalog{
		rows:    10_000,
		columns: []domain.ColumnDescriptor{col("order_date", "date", 1)},
		indexes: []domain.IndexInfo{{Name: "ix", Columns: []string{"order_date"}}},
		refsErr: domain.ErrPrivilege,
	}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")}}

	res, err := newTestAnalyzer(catalog, sampler, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)
	assert.Equal(t, 15, res.Selected.UsageScore)
	assert.Contains(t, warningCodes(res.Warnings), "references_unavailable:order_date")
}

func TestAnalyzeTable_Idempotent(t *testing.T) {
	catalog := &mockCatalog{
		rows:    30_000_000,
		sizeMB:  20_000,
		columns: []domain.ColumnDescriptor{col("created_at", "timestamp", 1), col("updated_at", "timestamp", 2)},
		indexes: []domain.IndexInfo{{Name: "ix", Columns: []string{"updated_at"}}},
	}
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{
			"created_at": cleanRange("2019-01-01", "2024-01-01"),
			"updated_at": cleanRange("2023-01-01", "2024-01-01"),
		},
	}
	a := newTestAnalyzer(catalog, sampler, newMockStore())

	first, err := a.AnalyzeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)
	second, err := a.AnalyzeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)

	r1, _ := json.Marshal(first.Recommendation)
	r2, _ := json.Marshal(second.Recommendation)
	assert.Equal(t, string(r1), string(r2))
	assert.Equal(t, first.Complexity, second.Complexity)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAnalyzeTable_StatsMissing(t *testing.T) {
	catalog := &mockCatalog{rows: -1, columns: []domain.ColumnDescriptor{col("id", "bigint", 1)}}
	res, err := newTestAnalyzer(catalog, &mockSampler{}, newMockStore()).AnalyzeTable(context.Background(), domain.TableRef{Name: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Table.RowCount)
	assert.Contains(t, warningCodes(res.Warnings), "stats_missing:")
	assert.Equal(t, "not suitable for partitioning", res.Recommendation.Rationale)
}

func TestAnalyzeTask_PersistsResult(t *testing.T) {
	store := newMockStore("sales.orders")
	catalog := &mockCatalog{rows: 1000, columns: []domain.ColumnDescriptor{col("order_date", "date", 1)}}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")}}
	inst := &mockInst{}
	a := NewAnalyzer(catalog, sampler, store, domain.DefaultThresholds(), testLogger(), nil, inst)

	res, err := a.AnalyzeTask(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TaskID)
	assert.Equal(t, domain.StatusAnalyzed, store.status(1))

	saved, err := store.GetResult(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, saved.RunID)
	assert.Equal(t, 1, inst.analyses)

	// Re-analysis replaces the prior result.
	again, err := a.AnalyzeTask(context.Background(), 1)
	require.NoError(t, err)
	saved, err = store.GetResult(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, again.RunID, saved.RunID)
	assert.Len(t, store.results, 1)
}

func TestAnalyzeTask_CatalogErrorFailsTask(t *testing.T) {
	store := newMockStore("app.secret")
	catalog := &mockCatalog{columnsErr: domain.ErrPrivilege}
	inst := &mockInst{}
	a := NewAnalyzer(catalog, &mockSampler{}, store, domain.DefaultThresholds(), testLogger(), nil, inst)

	_, err := a.AnalyzeTask(context.Background(), 1)
	require.Error(t, err)

	var aerr *domain.AnalysisError
	require.ErrorAs(t, err, &aerr)
	var cerr *domain.CatalogAccessError
	assert.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, domain.ErrPrivilege)
	assert.False(t, IsSkippable(err))

	task, _ := store.GetTask(context.Background(), 1)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "insufficient privileges")
	_, err = store.GetResult(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, inst.failures)
}

func TestAnalyzeTask_FailedRerunDropsPriorResult(t *testing.T) {
	store := newMockStore("sales.orders")
	catalog := &mockCatalog{rows: 1000, columns: []domain.ColumnDescriptor{col("order_date", "date", 1)}}
	sampler := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")}}
	a := newTestAnalyzer(catalog, sampler, store)

	_, err := a.AnalyzeTask(context.Background(), 1)
	require.NoError(t, err)
	_, err = store.GetResult(context.Background(), 1)
	require.NoError(t, err)

	catalog.columnsErr = domain.ErrPrivilege
	_, err = a.AnalyzeTask(context.Background(), 1)
	require.Error(t, err)

	task, err := store.GetTask(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Empty(t, task.Readiness)
	_, err = store.GetResult(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalyzeTask_CancellationLeavesTaskFailed(t *testing.T) {
	store := newMockStore("orders")
	catalog := &mockCatalog{rows: 1000, columns: []domain.ColumnDescriptor{col("order_date", "date", 1)}}
	sampler := &mockSampler{
		ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2024-01-01")},
		delay:  time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer(catalog, sampler, store).AnalyzeTask(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusFailed, store.status(1))
	assert.Empty(t, store.results)
}

type panickingCatalog struct{ *mockCatalog }

func (panickingCatalog) GetIndexes(context.Context, domain.TableRef) ([]domain.IndexInfo, error) {
	panic("catalog exploded")
}

func TestAnalyzeTask_PanicIsRecovered(t *testing.T) {
	store := newMockStore("orders")
	catalog := panickingCatalog{&mockCatalog{columns: []domain.ColumnDescriptor{col("id", "bigint", 1)}}}

	_, err := newTestAnalyzer(catalog, &mockSampler{}, store).AnalyzeTask(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog exploded")
	assert.Equal(t, domain.StatusFailed, store.status(1))
}

func TestAnalyzeTask_SaveFailureFailsTask(t *testing.T) {
	store := newMockStore("orders")
	store.saveErr = errors.New("disk full")
	catalog := &mockCatalog{columns: []domain.ColumnDescriptor{col("id", "bigint", 1)}}

	_, err := newTestAnalyzer(catalog, &mockSampler{}, store).AnalyzeTask(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, store.status(1))
}

func TestAnalyzeTask_LockedAndMissing(t *testing.T) {
	store := newMockStore("orders")
	_, err := store.ClaimTask(context.Background(), 1)
	require.NoError(t, err)
	a := newTestAnalyzer(&mockCatalog{}, &mockSampler{}, store)

	_, err = a.AnalyzeTask(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrTaskLocked)
	assert.True(t, IsSkippable(err))
	assert.Equal(t, domain.StatusAnalyzing, store.status(1))

	_, err = a.AnalyzeTask(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
