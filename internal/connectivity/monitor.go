// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package connectivity observes online/offline transitions.
//
// The monitor probes a health endpoint on a fixed interval and notifies
// subscribers on each actual transition. Subscribers never see duplicate
// "online" notifications while already online. Transitioning to online is the
// sole automatic trigger for a sync drain; the sync engine registers a change
// callback at wiring time.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/justinnewbold/scavengers-sub000/internal/logging"
)

// Prober answers a point-in-time reachability question.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes a health URL with a bounded HEAD request.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober against the given health URL.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe reports whether the health endpoint is reachable. Any HTTP response
// counts as reachable; only transport failures mean offline.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Monitor watches connectivity and fans out transition notifications.
type Monitor struct {
	prober   Prober
	interval time.Duration

	// State - all protected by mu
	mu       sync.Mutex
	online   bool
	nextID   int
	subs     map[int]func(online bool)
	running  bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewMonitor creates a monitor that probes on the given interval once
// started. The initial state is offline until the first probe says otherwise.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		subs:     make(map[int]func(bool)),
	}
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// CheckConnection performs a point-in-time probe, records the result, and
// fires change callbacks if the state transitioned.
func (m *Monitor) CheckConnection(ctx context.Context) bool {
	online := m.prober.Probe(ctx)
	m.observe(online)
	return online
}

// OnConnectivityChange registers a callback invoked once per actual
// transition with the new state. The returned function unsubscribes.
func (m *Monitor) OnConnectivityChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Start begins the background probe loop. It runs until Stop is called or the
// context is canceled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.stopDone = make(chan struct{})
	done := m.stopDone
	m.mu.Unlock()

	go m.run(loopCtx, done)

	logging.Info().Dur("interval", m.interval).Msg("Connectivity monitor started")
	return nil
}

// Stop halts the probe loop and waits for it to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.running = false
	done := m.stopDone
	m.mu.Unlock()

	<-done
	logging.Info().Msg("Connectivity monitor stopped")
	return nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Probe immediately so the first observation does not wait a full tick.
	m.CheckConnection(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckConnection(ctx)
		}
	}
}

// observe records a probe result and notifies subscribers on transition.
// Callbacks run outside the lock so they may call back into the monitor.
func (m *Monitor) observe(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	callbacks := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	logging.Info().Bool("online", online).Msg("Connectivity changed")
	for _, fn := range callbacks {
		fn(online)
	}
}
