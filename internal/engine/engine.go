// Package engine wires the runner, dispatcher, result queue, state store and
// scheduler together, and implements the consumer side: draining results,
// applying them, notifying renderers and issuing follow-up refreshes.
//
// Exactly one goroutine may call Pump (or Run, RunOnce and Execute, which
// call it). Everything else is safe for concurrent use.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/netpilot/internal/config"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/parsers"
	"github.com/rileyhilliard/netpilot/internal/poll"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/task"
)

// Renderer receives snapshots after the sections it cares about changed.
// Methods are called from the consumer goroutine only and must not block.
type Renderer interface {
	RenderAdapters(snap *state.Snapshot)
	RenderConnections(snap *state.Snapshot)
	RenderDiagnostics(snap *state.Snapshot)
	RenderStatistics(snap *state.Snapshot)
}

// StatusRenderer is implemented by renderers that also show the status line.
type StatusRenderer interface {
	RenderStatus(snap *state.Snapshot)
}

// WiFiRenderer is implemented by renderers that show the Wi-Fi status and
// the networks in range.
type WiFiRenderer interface {
	RenderWiFi(snap *state.Snapshot)
}

// TraceRenderer is implemented by renderers that show route traces.
type TraceRenderer interface {
	RenderTraceroute(snap *state.Snapshot)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRunner replaces the runner chosen from config.
func WithRunner(r query.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithBuilder replaces the builder chosen from config.
func WithBuilder(b query.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithParser replaces the default parser (tests use it to pin the clock).
func WithParser(p *parsers.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// Engine owns every long-lived component.
type Engine struct {
	cfg *config.Config
	log logger.Logger

	builder    query.Builder
	runner     query.Runner
	parser     *parsers.Parser
	queue      *task.Queue
	dispatcher *task.Dispatcher
	store      *state.Store
	scheduler  *poll.Scheduler

	rmu       sync.Mutex
	renderers []Renderer

	closeOnce sync.Once
}

// New builds an engine from cfg. Nothing runs until Start (or RunOnce or
// Execute) is called.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Noop()
	}

	e := &Engine{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(e)
	}

	params := map[string]string{
		query.ParamPingTarget:  cfg.Diagnostics.PingTarget,
		query.ParamPublicIPURL: cfg.Diagnostics.PublicIPURL,
	}

	if e.builder == nil {
		b, err := query.NewBuilder(query.BuilderOptions{
			Name:       cfg.Query.Builder,
			PowerShell: cfg.Query.PowerShell,
			Shell:      cfg.Query.Shell,
			Commands:   cfg.Query.Commands,
			Defaults:   params,
			Remote:     cfg.Query.Host != "",
		})
		if err != nil {
			return nil, err
		}
		e.builder = b
	}
	if e.runner == nil {
		if cfg.Query.Host != "" {
			e.runner = query.NewSSHRunner(cfg.Query.Host, cfg.Query.SSHTimeout, logger.With(log, "ssh"))
		} else {
			e.runner = query.NewLocalRunner(logger.With(log, "runner"))
		}
	}
	if e.parser == nil {
		e.parser = parsers.New(logger.With(log, "parser"))
	}

	e.queue = task.NewQueue(cfg.Queue.Capacity, cfg.Queue.EnqueueTimeout, logger.With(log, "queue"))
	e.dispatcher = task.NewDispatcher(e.builder, e.runner, e.parser, e.queue, task.Options{
		QueryTimeout:  cfg.Query.Timeout,
		ActionTimeout: cfg.Query.ActionTimeout,
		MaxRetries:    cfg.Dispatch.MaxRetries,
		RetryBackoff:  cfg.Dispatch.RetryBackoff,
		Params:        params,
	}, logger.With(log, "dispatch"))
	e.store = state.New(logger.With(log, "state"))
	e.scheduler = poll.New(e.dispatcher, e.store, Cadence(cfg.Poll), logger.With(log, "poll"))

	return e, nil
}

// Cadence derives the per-kind refresh cadence from poll config. Wi-Fi
// kinds are left out when poll.wifi_interval is zero.
func Cadence(p config.PollConfig) poll.Cadence {
	c := poll.Cadence{
		query.KindAdapters:    0,
		query.KindStatistics:  0,
		query.KindDiagnostics: p.DiagnosticsInterval,
		query.KindConnections: p.ConnectionsInterval,
	}
	if p.WiFiInterval > 0 {
		c[query.KindWiFi] = p.WiFiInterval
		c[query.KindWiFiNetworks] = p.WiFiInterval
	}
	return c
}

// polled lists the query kinds the scheduler issues, in Queries order.
func (e *Engine) polled() []query.Kind {
	cadence := Cadence(e.cfg.Poll)
	var kinds []query.Kind
	for _, k := range query.Queries() {
		if _, ok := cadence[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Store returns the state store.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() *state.Snapshot {
	return e.store.Snapshot()
}

// Dispatcher returns the dispatcher.
func (e *Engine) Dispatcher() *task.Dispatcher {
	return e.dispatcher
}

// Busy returns how many commands are running.
func (e *Engine) Busy() int {
	return len(e.dispatcher.InFlight())
}

// Remote returns the SSH host queries run on, or "" for local.
func (e *Engine) Remote() string {
	return e.cfg.Query.Host
}

// AddRenderer registers r. Renderers are called in registration order.
func (e *Engine) AddRenderer(r Renderer) {
	e.rmu.Lock()
	defer e.rmu.Unlock()
	e.renderers = append(e.renderers, r)
}

// Start begins polling at poll.interval.
func (e *Engine) Start() error {
	return e.scheduler.Start(e.cfg.Poll.Interval)
}

// RefreshNow triggers an immediate refresh of every kind.
func (e *Engine) RefreshNow() {
	if e.scheduler.Running() {
		e.scheduler.RefreshNow()
		return
	}
	kinds := e.polled()
	if !e.store.AnyAdapterUp() {
		kinds = withoutDiagnostics(kinds)
	}
	e.dispatcher.Submit(task.Refresh("manual", kinds...))
}

// Do submits one action. The handle says whether it was accepted.
func (e *Engine) Do(d query.Descriptor) task.Handle {
	if !d.Kind.Valid() || d.Kind.IsQuery() {
		return task.Handle{Key: task.KeyOf(d), Descriptor: d, Reason: fmt.Sprintf("'%s' is not an action", d.Kind)}
	}
	handles := e.dispatcher.Submit(task.Single("user", d))
	return handles[0]
}

// Pump drains every queued result, applies each in arrival order and
// notifies renderers of the sections that changed. It never blocks.
func (e *Engine) Pump() []task.Result {
	results := e.queue.DrainAll()
	for _, r := range results {
		snap := e.store.Apply(r)
		e.log.Debug("applied %s id=%s %s in %d attempt(s)", r.Descriptor, r.ID, r.State, r.Attempts)
		e.render(snap)
		e.followUp(r)
	}
	return results
}

// Run pumps every interval until ctx is done. It is the consumer loop for
// headless use; the dashboard pumps from its own update loop instead.
func (e *Engine) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Pump()
			return nil
		case <-ticker.C:
			e.Pump()
		}
	}
}

// RunOnce performs one full refresh cycle without the scheduler and returns
// the resulting snapshot. Diagnostics follow the adapters so the
// connectivity gate sees fresh data.
func (e *Engine) RunOnce(ctx context.Context) (*state.Snapshot, error) {
	e.dispatcher.Submit(task.Refresh("once", withoutDiagnostics(e.polled())...))
	if err := e.settle(ctx); err != nil {
		return e.store.Snapshot(), err
	}

	if e.store.AnyAdapterUp() {
		e.dispatcher.Submit(task.Refresh("once", query.KindDiagnostics))
		if err := e.settle(ctx); err != nil {
			return e.store.Snapshot(), err
		}
	} else {
		e.log.Info("diagnostics skipped: no adapter is up (%s)", errors.ErrNoConnectivity)
	}
	return e.store.Snapshot(), nil
}

// Refresh runs the given queries once, ignoring cadence and the
// connectivity gate, and returns the resulting snapshot.
func (e *Engine) Refresh(ctx context.Context, kinds ...query.Kind) (*state.Snapshot, error) {
	for _, k := range kinds {
		if !k.IsQuery() {
			return e.store.Snapshot(), errors.New(errors.ErrConfig, fmt.Sprintf("'%s' is not a query", k), "")
		}
	}
	e.dispatcher.Submit(task.Refresh("once", kinds...))
	if err := e.settle(ctx); err != nil {
		return e.store.Snapshot(), err
	}
	return e.store.Snapshot(), nil
}

// Execute runs one action to completion, applies its result and the
// follow-up refreshes, and returns the action's result.
func (e *Engine) Execute(ctx context.Context, d query.Descriptor) (task.Result, error) {
	h := e.Do(d)
	if !h.Accepted {
		return task.Result{}, errors.New(errors.ErrAction,
			fmt.Sprintf("Couldn't start %s: %s", d, h.Reason), "")
	}

	var mine task.Result
	found := false
	for {
		if err := e.dispatcher.Wait(ctx); err != nil {
			return mine, errors.WrapWithCode(err, errors.ErrTimeout,
				fmt.Sprintf("Gave up waiting for %s", d), "")
		}
		results := e.Pump()
		for _, r := range results {
			if r.ID == h.ID {
				mine = r
				found = true
			}
		}
		// Follow-ups were submitted by Pump; wait for those too.
		if found && len(e.dispatcher.InFlight()) == 0 && e.queue.Len() == 0 {
			return mine, nil
		}
	}
}

// settle waits for everything in flight and applies it, including any
// follow-ups.
func (e *Engine) settle(ctx context.Context) error {
	for {
		if err := e.dispatcher.Wait(ctx); err != nil {
			return errors.WrapWithCode(err, errors.ErrTimeout, "Gave up waiting for queries to finish", "")
		}
		e.Pump()
		if len(e.dispatcher.InFlight()) == 0 && e.queue.Len() == 0 {
			return nil
		}
	}
}

// Close stops polling, kills running commands and closes the runner, in
// that order. Safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.scheduler.Stop()
		e.dispatcher.Close()
		err = e.runner.Close()
	})
	return err
}

func (e *Engine) render(snap *state.Snapshot) {
	e.rmu.Lock()
	renderers := append([]Renderer(nil), e.renderers...)
	e.rmu.Unlock()

	for _, r := range renderers {
		if snap.Changed.Has(state.SectionAdapters) {
			r.RenderAdapters(snap)
		}
		if snap.Changed.Has(state.SectionConnections) {
			r.RenderConnections(snap)
		}
		if snap.Changed.Has(state.SectionDiagnostics) {
			r.RenderDiagnostics(snap)
		}
		if snap.Changed.Has(state.SectionStatistics) {
			r.RenderStatistics(snap)
		}
		if wr, ok := r.(WiFiRenderer); ok && snap.Changed.Has(state.SectionWiFi) {
			wr.RenderWiFi(snap)
		}
		if tr, ok := r.(TraceRenderer); ok && snap.Changed.Has(state.SectionTraceroute) {
			tr.RenderTraceroute(snap)
		}
		if sr, ok := r.(StatusRenderer); ok && snap.Changed.Has(state.SectionStatus) {
			sr.RenderStatus(snap)
		}
	}
}

// followUp refreshes what a successful action changed.
func (e *Engine) followUp(r task.Result) {
	if !r.Success() {
		return
	}
	var kinds []query.Kind
	switch r.Kind() {
	case query.KindAdapterEnable, query.KindAdapterDisable:
		kinds = []query.Kind{query.KindAdapters, query.KindStatistics, query.KindWiFi}
	case query.KindStackReset:
		kinds = []query.Kind{query.KindAdapters, query.KindStatistics}
	case query.KindWiFiConnect, query.KindWiFiDisconnect:
		kinds = []query.Kind{query.KindWiFi, query.KindWiFiNetworks, query.KindAdapters, query.KindDiagnostics}
	case query.KindWiFiForget:
		kinds = []query.Kind{query.KindWiFi}
	case query.KindIPRenew:
		kinds = []query.Kind{query.KindAdapters, query.KindDiagnostics}
	case query.KindDNSFlush:
		kinds = []query.Kind{query.KindDiagnostics}
	case query.KindProcessKill:
		kinds = []query.Kind{query.KindConnections}
	default:
		return
	}
	if !e.store.AnyAdapterUp() {
		kinds = withoutDiagnostics(kinds)
	}
	if len(kinds) > 0 {
		e.dispatcher.Submit(task.Refresh("follow-up", kinds...))
	}
}

func withoutDiagnostics(kinds []query.Kind) []query.Kind {
	out := kinds[:0:0]
	for _, k := range kinds {
		if k != query.KindDiagnostics {
			out = append(out, k)
		}
	}
	return out
}
