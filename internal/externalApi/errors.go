package externalApi

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("error not found")
	ErrUnexpectedCode = errors.New("unexpected status code")
	ErrEmptyResponse  = errors.New("empty response")
)

// FetchError is returned for any failure talking to an upstream source.
type FetchError struct {
	Source     string
	Symbol     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.Source
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
