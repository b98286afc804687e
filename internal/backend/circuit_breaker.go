// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
)

// BreakerSettings configures a CircuitBreaker. Zero values fall back to the
// defaults used in production.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // concurrent probes in half-open state
	Interval    time.Duration // closed-state count reset window
	Timeout     time.Duration // open -> half-open delay
	MinRequests uint32        // requests before the failure ratio is considered
	FailureRate float64
}

// DefaultBreakerSettings returns the production breaker configuration:
// 3 half-open probes, 1 minute window, 2 minute cool-down, trip at 60%
// failures once 10 requests have been seen.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "backend",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		MinRequests: 10,
		FailureRate: 0.6,
	}
}

// CircuitBreaker wraps a Backend so that a dead service fails fast instead of
// every queued mutation waiting out its own timeout.
//
// Only transient errors count as failures. A foreign key rejection proves the
// service is up and must not open the circuit.
type CircuitBreaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

// NewCircuitBreaker wraps next.
func NewCircuitBreaker(next Backend, s BreakerSettings) *CircuitBreaker {
	def := DefaultBreakerSettings()
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = def.MaxRequests
	}
	if s.Interval == 0 {
		s.Interval = def.Interval
	}
	if s.Timeout == 0 {
		s.Timeout = def.Timeout
	}
	if s.MinRequests == 0 {
		s.MinRequests = def.MinRequests
	}
	if s.FailureRate <= 0 {
		s.FailureRate = def.FailureRate
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= s.FailureRate {
				logging.Warn().
					Str("breaker", s.Name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreaker{next: next, cb: cb, name: s.Name}
}

// State returns "closed", "half-open" or "open".
func (c *CircuitBreaker) State() string {
	return stateToString(c.cb.State())
}

func (c *CircuitBreaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			return nil, &Error{Op: "breaker", Message: err.Error(), Err: ErrUnavailable}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return result, nil
}

func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (c *CircuitBreaker) Insert(ctx context.Context, table string, row map[string]interface{}) (string, error) {
	return castResult[string](c.execute(func() (interface{}, error) {
		return c.next.Insert(ctx, table, row)
	}))
}

func (c *CircuitBreaker) Update(ctx context.Context, table, id string, patch map[string]interface{}) error {
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.next.Update(ctx, table, id, patch)
	})
	return err
}

type queryResult struct {
	row   map[string]interface{}
	found bool
}

func (c *CircuitBreaker) Query(ctx context.Context, table string, filters map[string]string) (map[string]interface{}, bool, error) {
	res, err := castResult[queryResult](c.execute(func() (interface{}, error) {
		row, found, err := c.next.Query(ctx, table, filters)
		return queryResult{row: row, found: found}, err
	}))
	return res.row, res.found, err
}

func (c *CircuitBreaker) UploadBlob(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	return castResult[string](c.execute(func() (interface{}, error) {
		return c.next.UploadBlob(ctx, bucket, path, data, contentType)
	}))
}

// Ping bypasses the breaker so reachability probes keep reporting the truth
// while the circuit is open.
func (c *CircuitBreaker) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

var _ Backend = (*CircuitBreaker)(nil)
