// Package netmon observes connectivity to the remote sync endpoint.
//
// The monitor probes a health endpoint on a fixed cadence and publishes
// online/offline transitions to subscribers. Embedding applications that
// have their own reachability signal (mobile shells, desktop frameworks)
// can bypass probing entirely and feed transitions through SetOnline.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerkeep/ledgersync/internal/logger"
)

// Prober performs one reachability check. The resty sync gateway satisfies
// this with its health probe.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor tracks current connectivity and notifies subscribers on
// transitions. The engine starts exactly one monitor; its Run method
// implements the workers.Worker contract.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	known  bool
	online bool
	subs   []chan bool

	wg sync.WaitGroup
}

// New builds a monitor probing through prober every interval. If interval
// is zero or negative it defaults to 30 seconds.
func New(prober Prober, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{prober: prober, interval: interval, logger: log}
}

// Run starts the probe loop in a background goroutine. An initial probe
// runs immediately so the engine knows its starting state; afterwards the
// endpoint is probed every interval. The goroutine exits when ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.probe(ctx)

		t := time.NewTicker(m.interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.probe(ctx)
			}
		}
	}()
}

// Wait blocks until the probe loop has exited. Useful in tests and during
// engine shutdown.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Online reports the current connectivity state. Before the first probe or
// SetOnline call the monitor assumes online, matching the engine's
// optimistic first sync attempt.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return true
	}
	return m.online
}

// Subscribe returns a channel that receives the new state on every
// transition. Delivery is non-blocking: a slow subscriber observes only the
// latest transition, never a backlog.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// SetOnline records an externally observed connectivity state, notifying
// subscribers if it differs from the current one.
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

func (m *Monitor) probe(ctx context.Context) {
	err := m.prober.Health(ctx)
	if ctx.Err() != nil {
		return
	}
	m.transition(err == nil)
}

func (m *Monitor) transition(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.known = true
	m.online = online
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info().
		Str("func", "Monitor.transition").
		Bool("online", online).
		Msg("connectivity changed")

	for _, ch := range subs {
		// keep only the latest state in the buffer
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- online:
		default:
		}
	}
}
