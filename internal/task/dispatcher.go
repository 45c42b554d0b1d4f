package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/parsers"
	"github.com/rileyhilliard/netpilot/internal/query"
)

// Options configures a Dispatcher.
type Options struct {
	// QueryTimeout bounds each query command; ActionTimeout each action.
	QueryTimeout  time.Duration
	ActionTimeout time.Duration

	// MaxRetries is how many times a SPAWN or TIMEOUT failure of a query is
	// retried. Actions are never retried.
	MaxRetries int

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration

	// Params are merged into every descriptor that doesn't set them.
	Params map[string]string
}

// Dispatcher turns intents into requests, runs each on its own goroutine,
// and enqueues exactly one Result per accepted request.
type Dispatcher struct {
	builder query.Builder
	runner  query.Runner
	parser  *parsers.Parser
	queue   *Queue
	opts    Options
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[Key]string
	idle     chan struct{}
	closed   bool

	newID func() string
	now   func() time.Time
}

// NewDispatcher creates a dispatcher. The in-flight key set lives here and
// nowhere else.
func NewDispatcher(builder query.Builder, runner query.Runner, parser *parsers.Parser, queue *Queue, opts Options, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Noop()
	}
	if parser == nil {
		parser = parsers.New(log)
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = query.DefaultTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = opts.QueryTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		builder:  builder,
		runner:   runner,
		parser:   parser,
		queue:    queue,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[Key]string),
		idle:     idle,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Submit fans intent out into one request per descriptor. A descriptor
// whose key is already running is rejected, never queued twice. Submit
// returns immediately; results arrive through the queue.
func (d *Dispatcher) Submit(intent Intent) []Handle {
	handles := make([]Handle, 0, len(intent.Descriptors))
	for _, desc := range intent.Descriptors {
		desc = d.withParams(desc)
		h := Handle{Key: KeyOf(desc), Descriptor: desc}

		req, reason := d.acquire(desc)
		if reason != "" {
			h.Reason = reason
			d.log.Debug("%s: skipped %s (%s)", intent.Source, desc, reason)
			handles = append(handles, h)
			continue
		}

		h.ID = req.ID
		h.Accepted = true
		handles = append(handles, h)
		d.log.Debug("%s: dispatch %s id=%s", intent.Source, desc, req.ID)

		d.wg.Add(1)
		go d.run(req)
	}
	return handles
}

// InFlight returns the keys currently running.
func (d *Dispatcher) InFlight() []Key {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]Key, 0, len(d.inflight))
	for k := range d.inflight {
		keys = append(keys, k)
	}
	return keys
}

// Running reports whether key is in flight.
func (d *Dispatcher) Running(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[key]
	return ok
}

// Wait blocks until nothing is in flight (every accepted request has
// enqueued its result) or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new submissions, cancels running requests (killing their
// processes) and waits for the workers to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// acquire inserts desc's key into the in-flight set.
func (d *Dispatcher) acquire(desc query.Descriptor) (Request, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Request{}, "dispatcher closed"
	}
	key := KeyOf(desc)
	if id, busy := d.inflight[key]; busy {
		return Request{}, fmt.Sprintf("%s already running (id=%s)", key, id)
	}

	req := Request{
		ID:         d.newID(),
		Key:        key,
		Descriptor: desc,
		IssuedAt:   d.now(),
	}
	if len(d.inflight) == 0 {
		d.idle = make(chan struct{})
	}
	d.inflight[key] = req.ID
	return req, ""
}

// release removes key from the in-flight set.
func (d *Dispatcher) release(key Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, key)
	if len(d.inflight) == 0 {
		close(d.idle)
	}
}

func (d *Dispatcher) withParams(desc query.Descriptor) query.Descriptor {
	if len(d.opts.Params) == 0 {
		return desc
	}
	merged := make(map[string]string, len(d.opts.Params)+len(desc.Params))
	for k, v := range d.opts.Params {
		merged[k] = v
	}
	for k, v := range desc.Params {
		merged[k] = v
	}
	desc.Params = merged
	return desc
}

// run executes one request and enqueues its result before releasing the key,
// so a follow-up request for the same key always sees this result first.
func (d *Dispatcher) run(req Request) {
	defer d.wg.Done()
	defer d.release(req.Key)

	result := d.execute(req)
	if err := d.queue.Enqueue(context.Background(), result); err != nil {
		d.log.Error("%s id=%s: %v", req.Descriptor, req.ID, err)
	}
}

func (d *Dispatcher) execute(req Request) Result {
	result := Result{
		ID:         req.ID,
		Key:        req.Key,
		Descriptor: req.Descriptor,
		IssuedAt:   req.IssuedAt,
	}
	finish := func(state State, err error) Result {
		result.State = state
		result.Err = err
		switch state {
		case StateSucceeded:
			result.Outcome = OutcomeSuccess
		case StateTimedOut:
			result.Outcome = OutcomeTimeout
		default:
			result.Outcome = OutcomeFailure
		}
		result.CompletedAt = d.now()
		return result
	}

	cmd, err := d.builder.Build(req.Descriptor)
	if err != nil {
		d.log.Warn("%s id=%s: can't build command: %v", req.Descriptor, req.ID, err)
		return finish(StateFailedPermanent, err)
	}

	kind := req.Descriptor.Kind
	timeout := d.opts.QueryTimeout
	retries := d.opts.MaxRetries
	if !kind.IsQuery() {
		timeout = d.opts.ActionTimeout
		retries = 0
	}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		out, err := d.runner.Run(d.ctx, cmd, timeout)
		if err == nil {
			if !kind.IsQuery() {
				result.Output = strings.TrimSpace(string(out.Stdout))
			}
			if !kind.Parsed() {
				return finish(StateSucceeded, nil)
			}
			records, report, perr := d.parser.Parse(kind, out.Stdout)
			result.Report = report
			if perr != nil {
				// Output shape problems are never retried.
				return finish(StateFailedPermanent, perr)
			}
			result.Records = records
			return finish(StateSucceeded, nil)
		}

		code := errors.CodeOf(err)
		if !errors.Transient(code) {
			return finish(StateFailedPermanent, err)
		}
		if attempt > retries || d.ctx.Err() != nil {
			if code == errors.ErrTimeout {
				return finish(StateTimedOut, err)
			}
			return finish(StateFailedTransient, err)
		}

		backoff := d.opts.RetryBackoff * time.Duration(attempt)
		d.log.Info("%s id=%s attempt %d failed (%s), retrying in %s", req.Descriptor, req.ID, attempt, code, backoff)
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return finish(StateTimedOut, errors.WrapWithCode(d.ctx.Err(), errors.ErrTimeout,
				fmt.Sprintf("%s was cancelled", req.Descriptor), ""))
		}
	}
}
