// Package state owns the current view of the network. There is exactly one
// writer (the consumer that drains the result queue); everyone else reads
// immutable snapshots.
package state

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/task"
)

// Store publishes snapshots. Apply and SetStatus must only be called from
// the consumer goroutine; Snapshot and AnyAdapterUp are safe from anywhere.
type Store struct {
	current atomic.Pointer[Snapshot]
	log     logger.Logger
	now     func() time.Time
}

// New creates a store holding an empty snapshot.
func New(log logger.Logger) *Store {
	if log == nil {
		log = logger.Noop()
	}
	s := &Store{log: log, now: time.Now}
	s.current.Store(&Snapshot{
		Adapters:     List[records.Adapter]{Items: []records.Adapter{}},
		Connections:  List[records.Connection]{Items: []records.Connection{}},
		Statistics:   List[records.InterfaceStats]{Items: []records.InterfaceStats{}},
		Rates:        map[string]Rate{},
		Diagnostics:  records.Diagnostics{DNSServers: []string{}},
		WiFi:         records.WiFi{Profiles: []string{}},
		WiFiNetworks: List[records.WiFiNetwork]{Items: []records.WiFiNetwork{}},
	})
	return s
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// AnyAdapterUp reports whether the current snapshot has an adapter Up.
func (s *Store) AnyAdapterUp() bool {
	return s.current.Load().AnyAdapterUp()
}

// SetStatus publishes a status line that did not come from a result.
func (s *Store) SetStatus(level Level, format string, args ...interface{}) *Snapshot {
	next := s.current.Load().clone()
	next.Status = Status{Text: fmt.Sprintf(format, args...), Level: level, At: s.now()}
	next.Changed = SectionStatus
	s.current.Store(next)
	return next
}

// Apply folds one result into a new snapshot and publishes it. Lists are
// replaced wholesale; a failed list refresh publishes an empty list with the
// error. Diagnostics keep their last good value and are marked stale; the
// Wi-Fi status keeps its last good value with the error beside it.
func (s *Store) Apply(r task.Result) *Snapshot {
	prev := s.current.Load()
	next := prev.clone()

	at := r.CompletedAt
	if at.IsZero() {
		at = s.now()
	}

	switch r.Kind() {
	case query.KindAdapters:
		next.Adapters = applyList[records.Adapter](r, at)
		next.Changed |= SectionAdapters
	case query.KindConnections:
		next.Connections = applyList[records.Connection](r, at)
		next.Changed |= SectionConnections
	case query.KindStatistics:
		next.Statistics = applyList[records.InterfaceStats](r, at)
		next.Rates = rates(prev.Statistics.Items, next.Statistics.Items)
		next.Changed |= SectionStatistics
	case query.KindDiagnostics:
		s.applyDiagnostics(next, r, at)
		next.Changed |= SectionDiagnostics
	case query.KindWiFi:
		applyWiFi(next, r)
		next.Changed |= SectionWiFi
	case query.KindWiFiNetworks:
		next.WiFiNetworks = applyList[records.WiFiNetwork](r, at)
		next.Changed |= SectionWiFi
	case query.KindTraceroute:
		if tr, ok := r.Records.(records.Traceroute); ok && r.Success() {
			if tr.Target == "" {
				tr.Target = r.Descriptor.Target
			}
			next.Traceroute = &tr
			next.Changed |= SectionTraceroute
		}
		next.Status = ActionStatus(r, at)
		next.Changed |= SectionStatus
	default:
		next.Status = ActionStatus(r, at)
		next.Changed |= SectionStatus
	}

	if r.Kind().IsQuery() && !r.Success() {
		s.log.Warn("%s refresh failed: %s", r.Kind(), r.ErrorText())
		next.Status = Status{
			Text:  fmt.Sprintf("%s refresh failed: %s", r.Kind(), r.ErrorText()),
			Level: LevelError,
			At:    at,
		}
		next.Changed |= SectionStatus
	}
	if r.Report.Partial() {
		s.log.Warn("%s: %d of %d elements dropped", r.Kind(), len(r.Report.Drops), r.Report.Total)
	}

	s.current.Store(next)
	return next
}

func applyList[T any](r task.Result, at time.Time) List[T] {
	if !r.Success() {
		return List[T]{Items: []T{}, Err: r.ErrorText(), UpdatedAt: at}
	}
	items, ok := r.Records.([]T)
	if !ok || items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Dropped: len(r.Report.Drops), UpdatedAt: at}
}

func (s *Store) applyDiagnostics(next *Snapshot, r task.Result, at time.Time) {
	if r.Success() {
		if d, ok := r.Records.(records.Diagnostics); ok {
			d.StaleSince = nil
			next.Diagnostics = d
			next.DiagErr = ""
			return
		}
	}

	next.DiagErr = r.ErrorText()
	if next.Diagnostics.Empty() {
		return
	}
	if next.Diagnostics.StaleSince == nil {
		stale := at
		next.Diagnostics.StaleSince = &stale
	}
}

func applyWiFi(next *Snapshot, r task.Result) {
	if r.Success() {
		if w, ok := r.Records.(records.WiFi); ok {
			if w.Profiles == nil {
				w.Profiles = []string{}
			}
			next.WiFi = w
			next.WiFiErr = ""
			return
		}
	}
	next.WiFiErr = r.ErrorText()
}

// rates derives per-second throughput from consecutive samples. Counter
// resets (a sample lower than the previous one) read as zero.
func rates(prev, cur []records.InterfaceStats) map[string]Rate {
	before := make(map[string]records.InterfaceStats, len(prev))
	for _, p := range prev {
		before[p.AdapterID] = p
	}

	out := make(map[string]Rate, len(cur))
	for _, c := range cur {
		p, ok := before[c.AdapterID]
		if !ok {
			continue
		}
		secs := c.SampledAt.Sub(p.SampledAt).Seconds()
		if secs <= 0 {
			continue
		}
		out[c.AdapterID] = Rate{
			RxPerSec: perSecond(p.ReceivedBytes, c.ReceivedBytes, secs),
			TxPerSec: perSecond(p.SentBytes, c.SentBytes, secs),
		}
	}
	return out
}

func perSecond(before, after uint64, secs float64) float64 {
	if after < before {
		return 0
	}
	return float64(after-before) / secs
}

// ActionStatus renders the outcome of a state-changing action.
func ActionStatus(r task.Result, at time.Time) Status {
	d := r.Descriptor
	if r.Success() {
		return Status{Text: actionSuccess(d, r.Records), Level: LevelSuccess, At: at}
	}
	if r.Outcome == task.OutcomeTimeout {
		return Status{Text: fmt.Sprintf("%s timed out", ActionName(d)), Level: LevelError, At: at}
	}
	if hint, level := actionHint(d, r.Err); hint != "" {
		return Status{Text: hint, Level: level, At: at}
	}
	return Status{Text: fmt.Sprintf("%s failed: %s", ActionName(d), r.ErrorText()), Level: LevelError, At: at}
}

func actionSuccess(d query.Descriptor, recs any) string {
	switch d.Kind {
	case query.KindAdapterEnable:
		return fmt.Sprintf("Enabled adapter '%s'", d.Target)
	case query.KindAdapterDisable:
		return fmt.Sprintf("Disabled adapter '%s'", d.Target)
	case query.KindDNSFlush:
		return "DNS resolver cache flushed"
	case query.KindIPRenew:
		return "IP address released and renewed"
	case query.KindStackReset:
		return "Network stack reset. Restart the computer to complete it"
	case query.KindProcessKill:
		return fmt.Sprintf("Terminated process %s", d.Target)
	case query.KindWiFiConnect:
		return fmt.Sprintf("Connecting to '%s'", d.Target)
	case query.KindWiFiDisconnect:
		return "Disconnected from Wi-Fi"
	case query.KindWiFiForget:
		return fmt.Sprintf("Forgot network '%s'", d.Target)
	case query.KindTraceroute:
		tr, ok := recs.(records.Traceroute)
		if !ok {
			return fmt.Sprintf("Traceroute to %s finished", d.Target)
		}
		if tr.Reached() {
			return fmt.Sprintf("Traceroute to %s: reached in %d hops", d.Target, len(tr.Hops))
		}
		return fmt.Sprintf("Traceroute to %s: not reached after %d hops", d.Target, len(tr.Hops))
	}
	return fmt.Sprintf("%s done", d)
}

// ActionName is the progressive phrase for an action, e.g. "DNS flush" or
// "Disabling 'Wi-Fi'".
func ActionName(d query.Descriptor) string {
	switch d.Kind {
	case query.KindAdapterEnable:
		return fmt.Sprintf("Enabling '%s'", d.Target)
	case query.KindAdapterDisable:
		return fmt.Sprintf("Disabling '%s'", d.Target)
	case query.KindDNSFlush:
		return "DNS flush"
	case query.KindIPRenew:
		return "IP renew"
	case query.KindStackReset:
		return "Network stack reset"
	case query.KindProcessKill:
		return fmt.Sprintf("Terminating process %s", d.Target)
	case query.KindWiFiConnect:
		return fmt.Sprintf("Connecting to '%s'", d.Target)
	case query.KindWiFiDisconnect:
		return "Wi-Fi disconnect"
	case query.KindWiFiForget:
		return fmt.Sprintf("Forgetting '%s'", d.Target)
	case query.KindTraceroute:
		return fmt.Sprintf("Tracing route to %s", d.Target)
	}
	return d.String()
}

// actionHint recognizes well-known Windows failure messages.
func actionHint(d query.Descriptor, err error) (string, Level) {
	if err == nil {
		return "", LevelError
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "already in the state"):
		verb := "enabled"
		if d.Kind == query.KindAdapterDisable {
			verb = "disabled"
		}
		return fmt.Sprintf("Adapter '%s' is already %s", d.Target, verb), LevelWarning
	case d.Kind == query.KindAdapterDisable && strings.Contains(msg, "cannot be disabled"):
		return fmt.Sprintf("Can't disable '%s' while it is connected to a Wi-Fi network", d.Target), LevelError
	case d.Kind == query.KindIPRenew && strings.Contains(msg, "unable to contact your dhcp server"):
		return "Could not renew IP address: the DHCP server is unreachable", LevelError
	case d.Kind == query.KindIPRenew && strings.Contains(msg, "no adapter is in the state permissible"):
		return "Could not renew IP address: one or more adapters are disabled", LevelError
	case d.Kind == query.KindAdapterDisable && strings.Contains(msg, "did not disconnect"):
		return fmt.Sprintf("'%s' did not disconnect from Wi-Fi in time; it is still enabled", d.Target), LevelError
	case d.Kind == query.KindWiFiConnect && (strings.Contains(msg, "network security key is not correct") ||
		strings.Contains(msg, "secrets were required")):
		return fmt.Sprintf("Wrong password for '%s'", d.Target), LevelError
	case d.Kind == query.KindWiFiConnect && (strings.Contains(msg, "no profile") ||
		strings.Contains(msg, "is not found") || strings.Contains(msg, "no network with ssid")):
		return fmt.Sprintf("No saved profile for '%s'; connect with a password first", d.Target), LevelError
	case d.Kind == query.KindWiFiForget && (strings.Contains(msg, "is not found") ||
		strings.Contains(msg, "unknown connection")):
		return fmt.Sprintf("No saved profile named '%s'", d.Target), LevelWarning
	case d.Kind == query.KindWiFiDisconnect && strings.Contains(msg, "not connected"):
		return "Wi-Fi is not connected", LevelWarning
	case strings.Contains(msg, "access is denied"), strings.Contains(msg, "requires elevation"),
		strings.Contains(msg, "operation not permitted"):
		return fmt.Sprintf("%s needs administrator rights", ActionName(d)), LevelError
	}
	return "", LevelError
}
