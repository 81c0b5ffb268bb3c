package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrPrivilege  = errors.New("insufficient privileges")
	ErrTaskLocked = errors.New("task is already being analyzed")
	ErrNoColumns  = errors.New("table has no columns")
)

// CatalogAccessError is fatal for the whole task: the table or one of its
// catalog facts could not be read.
type CatalogAccessError struct {
	Op    string
	Table TableRef
	Err   error
}

func (e *CatalogAccessError) Error() string {
	return fmt.Sprintf("catalog %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *CatalogAccessError) Unwrap() error { return e.Err }

// SamplingError is recovered locally: the column is excluded from candidacy.
type SamplingError struct {
	Probe  string
	Table  TableRef
	Column string
	Err    error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("probe %s on %s.%s: %v", e.Probe, e.Table, e.Column, e.Err)
}

func (e *SamplingError) Unwrap() error { return e.Err }

// Timeout reports whether the probe exceeded its deadline.
func (e *SamplingError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// AnalysisError is the catch-all raised at the task boundary.
type AnalysisError struct {
	TaskID int64
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of task %d failed: %v", e.TaskID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ErrorClass returns a short label for the originating error, used as the
// error.type log attribute.
func ErrorClass(err error) string {
	var (
		catalogErr  *CatalogAccessError
		samplingErr *SamplingError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrPrivilege):
		return "privilege"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &catalogErr):
		return "catalog_access"
	case errors.As(err, &samplingErr):
		return "sampling"
	default:
		root := err
		for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
			root = next
		}
		return fmt.Sprintf("%T", root)
	}
}

// WarningCode classifies a non-fatal finding recorded on the result.
type WarningCode string

const (
	WarnImplausibleYears      WarningCode = "implausible_years"
	WarnHighNulls             WarningCode = "high_nulls"
	WarnTimeComponent         WarningCode = "time_component"
	WarnSamplingFailed        WarningCode = "sampling_failed"
	WarnStereotypeRejected    WarningCode = "stereotype_rejected"
	WarnNonStandardDate       WarningCode = "non_standard_date"
	WarnStatsMissing          WarningCode = "stats_missing"
	WarnReferencesUnavailable WarningCode = "references_unavailable"
	WarnSparseDays            WarningCode = "sparse_days"
)

type Warning struct {
	Code    WarningCode `json:"code"`
	Column  string      `json:"column,omitempty"`
	Message string      `json:"message"`
}
