package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func i64(v int64) *int64 { return &v }

// --- mock Catalog ---

type mockCatalog struct {
	dialect     domain.Dialect
	kind        domain.TableKind
	rows        int64
	sizeMB      float64
	columns     []domain.ColumnDescriptor
	indexes     []domain.IndexInfo
	constraints []domain.ConstraintInfo
	triggers    []domain.TriggerInfo
	incoming    []domain.ConstraintInfo
	refs        map[string][]domain.ObjectReference
	refsErr     error
	columnsErr  error

	mu            sync.Mutex
	findRefsCalls map[string]int
}

func (m *mockCatalog) Dialect() domain.Dialect {
	if m.dialect == "" {
		return domain.DialectPostgres
	}
	return m.dialect
}

func (m *mockCatalog) GetTableKind(context.Context, domain.TableRef) (domain.TableKind, error) {
	if m.kind == "" {
		return domain.TableKindTable, nil
	}
	return m.kind, nil
}

func (m *mockCatalog) GetRowCountEstimate(context.Context, domain.TableRef) (int64, error) {
	return m.rows, nil
}

func (m *mockCatalog) GetSizeEstimate(context.Context, domain.TableRef) (float64, error) {
	return m.sizeMB, nil
}

func (m *mockCatalog) GetColumns(context.Context, domain.TableRef) ([]domain.ColumnDescriptor, error) {
	return slices.Clone(m.columns), m.columnsErr
}

func (m *mockCatalog) GetIndexes(context.Context, domain.TableRef) ([]domain.IndexInfo, error) {
	return m.indexes, nil
}

func (m *mockCatalog) GetConstraints(context.Context, domain.TableRef) ([]domain.ConstraintInfo, error) {
	return m.constraints, nil
}

func (m *mockCatalog) GetTriggers(context.Context, domain.TableRef) ([]domain.TriggerInfo, error) {
	return m.triggers, nil
}

func (m *mockCatalog) GetReferencingConstraints(context.Context, domain.TableRef) ([]domain.ConstraintInfo, error) {
	return m.incoming, nil
}

func (m *mockCatalog) FindReferences(_ context.Context, _ domain.TableRef, column string) ([]domain.ObjectReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findRefsCalls == nil {
		m.findRefsCalls = make(map[string]int)
	}
	m.findRefsCalls[column]++
	if m.refsErr != nil {
		return nil, m.refsErr
	}
	return m.refs[column], nil
}

// --- mock Sampler ---

type mockSampler struct {
	ranges      map[string]domain.DateRange
	filtered    map[string]domain.DateRange
	timeOfDay   map[string]bool
	days        map[string]int64
	numeric     map[string]domain.NumericRange
	samples     map[string]string
	matches     map[string]int64
	failColumns map[string]error
	delay       time.Duration

	mu    sync.Mutex
	calls []string
}

func (m *mockSampler) record(probe string, req port.ProbeRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, probe+":"+req.Column)
	m.mu.Unlock()
	if err, ok := m.failColumns[req.Column]; ok {
		return err
	}
	return nil
}

func (m *mockSampler) wait(ctx context.Context) error {
	if m.delay == 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockSampler) ProbeDateRange(ctx context.Context, req port.ProbeRequest) (domain.DateRange, error) {
	if err := m.record(port.ProbeDateRange, req); err != nil {
		return domain.DateRange{}, err
	}
	if err := m.wait(ctx); err != nil {
		return domain.DateRange{}, err
	}
	if req.YearBounds != nil {
		return m.filtered[req.Column], nil
	}
	return m.ranges[req.Column], nil
}

func (m *mockSampler) ProbeTimeComponent(_ context.Context, req port.ProbeRequest) (bool, error) {
	if err := m.record(port.ProbeTimeComponent, req); err != nil {
		return false, err
	}
	return m.timeOfDay[req.Column], nil
}

func (m *mockSampler) ProbeDistinctDays(_ context.Context, req port.ProbeRequest) (int64, error) {
	if err := m.record(port.ProbeDistinctDays, req); err != nil {
		return 0, err
	}
	return m.days[req.Column], nil
}

func (m *mockSampler) ProbeNumericRange(_ context.Context, req port.ProbeRequest) (domain.NumericRange, error) {
	if err := m.record(port.ProbeNumericRange, req); err != nil {
		return domain.NumericRange{}, err
	}
	return m.numeric[req.Column], nil
}

func (m *mockSampler) ProbeSampleValue(_ context.Context, req port.ProbeRequest) (string, bool, error) {
	if err := m.record(port.ProbeSampleValue, req); err != nil {
		return "", false, err
	}
	v, ok := m.samples[req.Column]
	return v, ok, nil
}

func (m *mockSampler) ProbeFormatMatch(_ context.Context, req port.ProbeRequest, pattern domain.TextDatePattern) (int64, error) {
	if err := m.record(port.ProbeFormatMatch, req); err != nil {
		return 0, err
	}
	return m.matches[req.Column+"|"+string(pattern.Format)], nil
}

func (m *mockSampler) probed(probe, column string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == probe+":"+column {
			n++
		}
	}
	return n
}

// --- mock TaskStore ---

type mockStore struct {
	mu      sync.Mutex
	tasks   map[int64]*domain.Task
	results map[int64]domain.AnalysisResult
	saveErr error
	nextID  int64
}

func newMockStore(tables ...string) *mockStore {
	s := &mockStore{tasks: make(map[int64]*domain.Task), results: make(map[int64]domain.AnalysisResult)}
	for _, t := range tables {
		_, _ = s.CreateTask(context.Background(), domain.ParseTableRef(t))
	}
	return s
}

func (s *mockStore) CreateTask(_ context.Context, ref domain.TableRef) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &domain.Task{ID: s.nextID, Owner: ref.Owner, TableName: ref.Name, Status: domain.StatusPending}
	s.tasks[t.ID] = t
	return *t, nil
}

func (s *mockStore) GetTask(_ context.Context, id int64) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return *t, nil
}

func (s *mockStore) ClaimTask(_ context.Context, id int64) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	if !t.Status.Claimable() {
		return domain.Task{}, domain.ErrTaskLocked
	}
	t.Status, t.Readiness, t.ErrorMessage, t.AnalyzedAt = domain.StatusAnalyzing, "", "", nil
	delete(s.results, id)
	return *t, nil
}

func (s *mockStore) SaveResult(_ context.Context, r domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	t, ok := s.tasks[r.TaskID]
	if !ok {
		return domain.ErrNotFound
	}
	s.results[r.TaskID] = r
	t.Status = domain.StatusAnalyzed
	t.Readiness = r.Readiness
	t.ErrorMessage = ""
	return nil
}

func (s *mockStore) UpdateTaskStatus(ctx context.Context, id int64, u domain.TaskUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status, t.Readiness, t.ErrorMessage = u.Status, u.Readiness, u.ErrorMessage
	if u.Status == domain.StatusFailed {
		delete(s.results, id)
	}
	return nil
}

func (s *mockStore) GetResult(_ context.Context, id int64) (*domain.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *mockStore) ListTasks(_ context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for id := int64(1); id <= s.nextID; id++ {
		if t, ok := s.tasks[id]; ok && (status == "" || t.Status == status) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *mockStore) status(id int64) domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

// --- mock Instrumentation ---

type mockInst struct {
	port.NoopInstrumentation
	mu            sync.Mutex
	analyses      int
	failures      int
	probeFailures map[string]int
}

func (m *mockInst) IncrementAnalysisCount(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses++
}

func (m *mockInst) IncrementAnalysisFailures(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *mockInst) IncrementProbeFailures(_ context.Context, probe string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probeFailures == nil {
		m.probeFailures = make(map[string]int)
	}
	m.probeFailures[probe]++
}

// --- mock ProbeAuditor ---

type mockAuditor struct {
	mu      sync.Mutex
	entries []port.ProbeEntry
}

func (m *mockAuditor) Record(_ context.Context, e port.ProbeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockAuditor) Close() error { return nil }

func warningCodes(ws []domain.Warning) []string {
	var out []string
	for _, w := range ws {
		out = append(out, fmt.Sprintf("%s:%s", w.Code, strings.ToLower(w.Column)))
	}
	return out
}
