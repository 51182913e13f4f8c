package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat marks a malformed interval string.
	ErrInvalidFormat = errors.New("invalid interval format")
	// ErrInvalidInput marks an aggregation call missing a raw series an evaluated rule needs.
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamError is a non-2xx answer from the exchange REST API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.Status == 429 || e.Status == 418 || e.Status >= 500
}

// NetworkError means no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConnectionFailure is reported once a stream subscription exhausts its reconnect budget.
type ConnectionFailure struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("stream %s: giving up after %d reconnect attempts: %v", e.Symbol, e.Attempts, e.Err)
}

func (e *ConnectionFailure) Unwrap() error { return e.Err }
