package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardedSampler_PassesThrough(t *testing.T) {
	t.Parallel()
	inner := &mockSampler{ranges: map[string]domain.DateRange{"order_date": cleanRange("2020-01-01", "2021-01-01")}}
	auditor := &mockAuditor{}
	inst := &mockInst{}
	s := NewGuardedSampler(inner, auditor, testLogger(), time.Second, nil, inst)

	req := port.ProbeRequest{Table: domain.TableRef{Owner: "sales", Name: "orders"}, Column: "order_date", ParallelHint: 4}
	r, err := s.ProbeDateRange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, day("2020-01-01"), r.Min)

	require.Len(t, auditor.entries, 1)
	e := auditor.entries[0]
	assert.Equal(t, port.ProbeDateRange, e.Probe)
	assert.Equal(t, "order_date", e.Column)
	assert.Equal(t, 4, e.ParallelHint)
	assert.NoError(t, e.Err)
	assert.Empty(t, inst.probeFailures)
}

func TestGuardedSampler_TimeoutBecomesSamplingError(t *testing.T) {
	t.Parallel()
	inner := &mockSampler{delay: time.Minute}
	auditor := &mockAuditor{}
	inst := &mockInst{}
	s := NewGuardedSampler(inner, auditor, testLogger(), 20*time.Millisecond, nil, inst)

	_, err := s.ProbeDateRange(context.Background(), port.ProbeRequest{Table: domain.TableRef{Name: "orders"}, Column: "order_date"})
	require.Error(t, err)

	var serr *domain.SamplingError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Timeout())
	assert.Equal(t, port.ProbeDateRange, serr.Probe)
	assert.Equal(t, "order_date", serr.Column)
	assert.Equal(t, "timeout", domain.ErrorClass(err))
	assert.Equal(t, 1, inst.probeFailures[port.ProbeDateRange])
	require.Len(t, auditor.entries, 1)
	assert.Error(t, auditor.entries[0].Err)
}

func TestGuardedSampler_WrapsEveryProbe(t *testing.T) {
	t.Parallel()
	boom := errors.New("relation is locked")
	inner := &mockSampler{failColumns: map[string]error{"c": boom}}
	s := NewGuardedSampler(inner, nil, testLogger(), 0, nil, nil)
	req := port.ProbeRequest{Table: domain.TableRef{Name: "t"}, Column: "c"}
	ctx := context.Background()

	probes := map[string]func() error{
		port.ProbeDateRange:     func() error { _, err := s.ProbeDateRange(ctx, req); return err },
		port.ProbeTimeComponent: func() error { _, err := s.ProbeTimeComponent(ctx, req); return err },
		port.ProbeDistinctDays:  func() error { _, err := s.ProbeDistinctDays(ctx, req); return err },
		port.ProbeNumericRange:  func() error { _, err := s.ProbeNumericRange(ctx, req); return err },
		port.ProbeSampleValue:   func() error { _, _, err := s.ProbeSampleValue(ctx, req); return err },
		port.ProbeFormatMatch: func() error {
			_, err := s.ProbeFormatMatch(ctx, req, domain.TextDatePatterns[0])
			return err
		},
	}
	for name, probe := range probes {
		t.Run(name, func(t *testing.T) {
			err := probe()
			var serr *domain.SamplingError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, name, serr.Probe)
			assert.ErrorIs(t, err, boom)
			assert.False(t, serr.Timeout())
		})
	}
}

func TestGuardedSampler_KeepsExistingSamplingError(t *testing.T) {
	t.Parallel()
	inner := &mockSampler{failColumns: map[string]error{
		"c": &domain.SamplingError{Probe: "inner", Column: "c", Err: domain.ErrPrivilege},
	}}
	s := NewGuardedSampler(inner, nil, testLogger(), 0, nil, nil)

	_, _, err := s.ProbeSampleValue(context.Background(), port.ProbeRequest{Column: "c"})
	var serr *domain.SamplingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "inner", serr.Probe)
	assert.ErrorIs(t, err, domain.ErrPrivilege)
}

func TestGuardedSampler_SampleValue(t *testing.T) {
	t.Parallel()
	inner := &mockSampler{samples: map[string]string{"created_on": "2024-03-01"}}
	s := NewGuardedSampler(inner, nil, testLogger(), time.Second, nil, nil)

	v, ok, err := s.ProbeSampleValue(context.Background(), port.ProbeRequest{Column: "created_on"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-01", v)

	_, ok, err = s.ProbeSampleValue(context.Background(), port.ProbeRequest{Column: "empty"})
	require.NoError(t, err)
	assert.False(t, ok)
}
