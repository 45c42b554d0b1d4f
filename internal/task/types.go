// Package task turns refresh and action intents into runner invocations.
// It owns the in-flight key set (at most one running request per key), the
// retry policy, and the bounded result queue that hands finished work to the
// single consumer.
package task

import (
	stderrors "errors"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/parsers"
	"github.com/rileyhilliard/netpilot/internal/query"
)

// Key identifies a logical unit of work for deduplication.
type Key struct {
	Resource string
	Action   string
}

// KeyOf returns the dedup key for a descriptor.
func KeyOf(d query.Descriptor) Key {
	return Key{Resource: d.Resource(), Action: d.Action()}
}

func (k Key) String() string {
	return k.Resource + "/" + k.Action
}

// State is the lifecycle state of a request.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailedTransient // Spawn failure or timeout; retried while the bound allows
	StateFailedPermanent // Bad exit status, malformed output or an invalid request
	StateTimedOut
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailedTransient:
		return "failed-transient"
	case StateFailedPermanent:
		return "failed-permanent"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Outcome is how a result is presented to the consumer.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Request is one unit of work issued by the dispatcher.
type Request struct {
	ID         string
	Key        Key
	Descriptor query.Descriptor
	IssuedAt   time.Time
}

// Result is the single terminal report for a Request.
type Result struct {
	ID         string
	Key        Key
	Descriptor query.Descriptor
	State      State
	Outcome    Outcome

	// Records is the parsed payload of a successful query or traceroute;
	// see parsers.Parse for the types.
	Records any

	// Report lists elements dropped while parsing.
	Report parsers.Report

	// Output is the trimmed stdout of a successful action.
	Output string

	// Err is set for Failure and Timeout outcomes.
	Err error

	Attempts    int
	IssuedAt    time.Time
	CompletedAt time.Time
}

// Kind returns the query or action kind.
func (r Result) Kind() query.Kind {
	return r.Descriptor.Kind
}

// Success reports whether the request succeeded.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// ErrorCode returns the structured error code, or "" on success.
func (r Result) ErrorCode() string {
	return errors.CodeOf(r.Err)
}

// ErrorText returns a one-line description of the failure.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	var npErr *errors.Error
	if stderrors.As(r.Err, &npErr) {
		return npErr.Short()
	}
	return r.Err.Error()
}

// Intent is a request to do work. A compound intent (several descriptors)
// fans out into independent requests.
type Intent struct {
	Descriptors []query.Descriptor

	// Source names who issued the intent (scheduler, manual, cli) for logs.
	Source string
}

// Refresh builds an intent that refreshes the given query kinds.
func Refresh(source string, kinds ...query.Kind) Intent {
	ds := make([]query.Descriptor, 0, len(kinds))
	for _, k := range kinds {
		ds = append(ds, query.Describe(k))
	}
	return Intent{Descriptors: ds, Source: source}
}

// Single builds an intent for one descriptor.
func Single(source string, d query.Descriptor) Intent {
	return Intent{Descriptors: []query.Descriptor{d}, Source: source}
}

// Handle reports what happened to one descriptor of an intent.
type Handle struct {
	ID         string
	Key        Key
	Descriptor query.Descriptor

	// Accepted is false when the key was already running or the dispatcher
	// is closed; Reason says which.
	Accepted bool
	Reason   string
}
