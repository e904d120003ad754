package anneal

import (
	"errors"
	"fmt"

	"github.com/hupe1980/anneal/internal/resource"
	"github.com/hupe1980/anneal/internal/scale"
)

var (
	// ErrEmptyTable is returned when the input table has no rows.
	ErrEmptyTable = errors.New("table has no rows")

	// ErrAlreadyRun is returned by a second call to Clusterer.Run.
	ErrAlreadyRun = errors.New("clusterer already run")

	// ErrNonFiniteValue is returned when an input value is NaN or infinite.
	ErrNonFiniteValue = errors.New("value is not finite")

	// ErrMemoryLimitExceeded is returned when the distance store does not
	// fit into the budget set with WithMemoryLimit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ZeroRangeError reports a constant row rejected by ZeroRangeReject.
type ZeroRangeError = scale.ZeroRangeError

// ErrDimensionMismatch indicates a row whose length differs from the first row.
type ErrDimensionMismatch struct {
	Row      int
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch at row %d: expected %d, got %d", e.Row, e.Expected, e.Actual)
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// NonFiniteError locates a NaN or infinite input value.
//
// It matches ErrNonFiniteValue with errors.Is.
type NonFiniteError struct {
	Row    int
	Column int
	Value  float64
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("row %d column %d: %v", e.Row, e.Column, e.Value)
}

func (e *NonFiniteError) Unwrap() error { return ErrNonFiniteValue }

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("clusterer closed")
