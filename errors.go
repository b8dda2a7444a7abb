package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConnectionError reports a single source company that could not be reached
// or queried. The aggregator records it and keeps going; it only becomes
// fatal when every company fails.
type ConnectionError struct {
	Company string
	Timeout bool
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("company %s: connection timed out: %v", e.Company, e.Err)
	}
	return fmt.Sprintf("company %s: connection failed: %v", e.Company, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AggregationError means every configured source failed. The run has no data
// to stand on and must not publish.
type AggregationError struct {
	Failures []CompanyFailure
}

func (e *AggregationError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Company)
	}
	return fmt.Sprintf("all %d source companies failed: %s", len(e.Failures), strings.Join(names, ", "))
}

// PublishError reports a rejected durable store write. ItemsProcessed counts
// the items already committed before the failure; those stay published.
type PublishError struct {
	ItemsProcessed int
	Err            error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed after %d items: %v", e.ItemsProcessed, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ConfigError reports malformed configuration or baseline input. It fails
// the run before any connection is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// isTimeout reports whether err represents an expired deadline, either from
// a context or from the database driver.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
