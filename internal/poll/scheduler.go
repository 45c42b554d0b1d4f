// Package poll issues recurring refresh intents. Each query kind has its own
// cadence on top of a base tick, diagnostics are gated on connectivity, and a
// manual refresh restarts the schedule.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/task"
)

// Submitter accepts intents. *task.Dispatcher satisfies it.
type Submitter interface {
	Submit(intent task.Intent) []task.Handle
}

// Connectivity reports whether any adapter is up. *state.Store satisfies it.
type Connectivity interface {
	AnyAdapterUp() bool
}

// Cadence maps a query kind to how often it is issued. Zero means every tick.
type Cadence map[query.Kind]time.Duration

// DefaultCadence refreshes adapters and statistics every tick, diagnostics
// every 5s and connections every 10s.
func DefaultCadence() Cadence {
	return Cadence{
		query.KindAdapters:    0,
		query.KindStatistics:  0,
		query.KindDiagnostics: 5 * time.Second,
		query.KindConnections: 10 * time.Second,
	}
}

// Scheduler drives refreshes from its own goroutine between Start and Stop.
type Scheduler struct {
	submit  Submitter
	online  Connectivity
	cadence Cadence
	gated   map[query.Kind]bool
	log     logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}

	// Owned by the loop goroutine.
	lastIssued map[query.Kind]time.Time
	suppressed bool
}

// New creates a scheduler. Kinds missing from cadence are never scheduled.
func New(submit Submitter, online Connectivity, cadence Cadence, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Noop()
	}
	if cadence == nil {
		cadence = DefaultCadence()
	}
	return &Scheduler{
		submit:     submit,
		online:     online,
		cadence:    cadence,
		gated:      map[query.Kind]bool{query.KindDiagnostics: true},
		log:        log,
		now:        time.Now,
		refresh:    make(chan struct{}, 1),
		lastIssued: make(map[query.Kind]time.Time),
	}
}

// Start issues a first refresh immediately and then one every interval.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Poll interval must be positive, got %s", interval),
			"Set poll.interval in netpilot.yaml, e.g. 2s")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New(errors.ErrConfig, "Scheduler is already running", "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, interval, s.done)
	s.log.Info("polling every %s", interval)
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debug("polling stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// RefreshNow asks the loop to refresh every kind and restart the tick.
// Requests coalesce: several calls before the loop wakes count as one.
func (s *Scheduler) RefreshNow() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.poll(false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(false)
		case <-s.refresh:
			ticker.Reset(interval)
			s.poll(true)
		}
	}
}

// poll issues every kind that is due. Manual polls ignore cadence but not
// the connectivity gate.
func (s *Scheduler) poll(manual bool) []task.Handle {
	now := s.now()
	online := s.online == nil || s.online.AnyAdapterUp()

	var kinds []query.Kind
	for _, k := range query.Queries() {
		every, scheduled := s.cadence[k]
		if !scheduled {
			continue
		}
		if s.gated[k] && !online {
			// Due again as soon as connectivity returns.
			delete(s.lastIssued, k)
			if !s.suppressed {
				s.log.Info("%s paused: no adapter is up (%s)", k, errors.ErrNoConnectivity)
				s.suppressed = true
			}
			continue
		}
		if s.gated[k] && s.suppressed {
			s.log.Info("%s resumed", k)
			s.suppressed = false
		}
		if !manual && every > 0 {
			if last, ok := s.lastIssued[k]; ok && now.Sub(last) < every {
				continue
			}
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil
	}

	source := "scheduler"
	if manual {
		source = "manual"
	}
	handles := s.submit.Submit(task.Refresh(source, kinds...))
	for _, h := range handles {
		if h.Accepted {
			s.lastIssued[h.Descriptor.Kind] = now
		}
	}
	return handles
}
