package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("error not found")
	ErrNoTable         = errors.New("no table found in document")
	ErrEmptyInput      = errors.New("empty input")
	ErrRaggedGrid      = errors.New("ragged grid")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrColumnNotFound  = errors.New("column not found")
)

// ParseError reports a document or grid that can't be turned into a table.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaError reports an expected column missing from a table.
type SchemaError struct {
	Column    string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q not found, available columns: [%s]", e.Column, strings.Join(e.Available, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrColumnNotFound
}

// BatchError collects per-symbol failures when a batch is allowed to finish partially.
type BatchError struct {
	Failures map[string]error
}

func (e *BatchError) Error() string {
	symbols := e.Symbols()
	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, fmt.Sprintf("%s: %s", symbol, e.Failures[symbol]))
	}
	return fmt.Sprintf("%d symbols failed: %s", len(symbols), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	res := make([]error, 0, len(e.Failures))
	for _, symbol := range e.Symbols() {
		res = append(res, e.Failures[symbol])
	}
	return res
}

// Symbols returns the failed symbols in sorted order.
func (e *BatchError) Symbols() []string {
	symbols := make([]string, 0, len(e.Failures))
	for symbol := range e.Failures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
