// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package realtime owns the per-hunt websocket connection and its state
// machine.
//
// States: disconnected, connecting, connected, reconnecting. The manager is
// the only component that mutates the socket handle or the connection state,
// always from its own callbacks and always under its lock. At most one live
// socket exists per manager: Connect closes and discards any prior socket
// before dialing.
//
// Reconnection follows a fixed escalating schedule indexed by attempt count.
// When the schedule is exhausted the manager gives up and surfaces a
// persistent "Connection lost" error; only an explicit Connect recovers.
// On every successful open the pending hunt subscription is re-issued so
// reconnection is transparent to callers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/justinnewbold/scavengers-sub000/internal/leaderboard"
	"github.com/justinnewbold/scavengers-sub000/internal/logging"
	"github.com/justinnewbold/scavengers-sub000/internal/metrics"
	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// ErrNoToken is surfaced when the token capability has nothing to offer.
// This is terminal: the manager transitions to disconnected and does not
// retry until the caller connects again.
var ErrNoToken = errors.New("realtime: no auth token available")

// connectionLostError is the persistent error shown after the reconnect
// budget is exhausted.
const connectionLostError = "Connection lost"

// DefaultBackoffSchedule is the fixed reconnect delay sequence.
var DefaultBackoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Options configures the connection manager.
type Options struct {
	// URL is the websocket endpoint; token and hunt id are appended as query
	// parameters.
	URL string

	// BackoffSchedule overrides DefaultBackoffSchedule when non-empty.
	BackoffSchedule []time.Duration

	// PingInterval is the keepalive cadence. Zero disables pings.
	PingInterval time.Duration

	// HandshakeTimeout bounds the websocket dial. Default 10s.
	HandshakeTimeout time.Duration
}

// Manager implements the realtime connection state machine and owns the
// in-memory leaderboard state, rebuilt from scratch on every new
// subscription.
type Manager struct {
	opts   Options
	tokens TokenProvider

	// afterFunc schedules the reconnect timer; swapped in tests.
	afterFunc func(d time.Duration, fn func()) *time.Timer

	// State below is protected by mu. gen identifies the current connection
	// attempt so callbacks from a discarded socket are ignored.
	mu             sync.Mutex
	state          models.ConnectionState
	lastErr        string
	huntID         string
	conn           *websocket.Conn
	gen            uint64
	attempts       int
	reconnectTimer *time.Timer
	board          leaderboard.State
}

// NewManager creates a disconnected manager.
func NewManager(opts Options, tokens TokenProvider) *Manager {
	if len(opts.BackoffSchedule) == 0 {
		opts.BackoffSchedule = DefaultBackoffSchedule
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Manager{
		opts:      opts,
		tokens:    tokens,
		afterFunc: time.AfterFunc,
		state:     models.StateDisconnected,
		board:     leaderboard.NewState(),
	}
}

// Connect subscribes to a hunt's event stream. Any prior socket is closed
// and discarded first. A missing auth token is a terminal error; dial
// failures enter the reconnect schedule instead.
func (m *Manager) Connect(ctx context.Context, huntID string) error {
	token, err := m.tokens.Token(ctx)
	if err != nil || token == "" {
		m.mu.Lock()
		m.teardownLocked()
		m.setStateLocked(models.StateDisconnected)
		m.lastErr = "Authentication required"
		m.mu.Unlock()
		if err == nil {
			err = ErrNoToken
		}
		return err
	}
	warnIfExpired(token)

	m.mu.Lock()
	m.teardownLocked()
	m.huntID = huntID
	m.attempts = 0
	m.lastErr = ""
	m.board = leaderboard.NewState()
	m.setStateLocked(models.StateConnecting)
	gen := m.gen
	m.mu.Unlock()

	go m.dial(ctx, gen, token)
	return nil
}

// Disconnect is the only deliberate transition to disconnected. Callable
// from any state; it cancels any pending reconnect timer, resets the attempt
// counter, and clears subscription and leaderboard state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.huntID = ""
	m.attempts = 0
	m.lastErr = ""
	m.board = leaderboard.NewState()
	m.setStateLocked(models.StateDisconnected)
	logging.Info().Msg("Realtime connection closed by caller")
}

// teardownLocked closes the live socket (if any), invalidates outstanding
// callbacks, and cancels the reconnect timer. Callers hold mu.
func (m *Manager) teardownLocked() {
	m.gen++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.conn != nil {
		//nolint:errcheck // best-effort close of a socket we are discarding
		m.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		m.conn.Close()
		m.conn = nil
	}
}

// dial opens the websocket for generation gen. Runs off the caller's
// goroutine; all state mutation happens back under mu.
func (m *Manager) dial(ctx context.Context, gen uint64, token string) {
	m.mu.Lock()
	huntID := m.huntID
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}

	wsURL, err := m.buildURL(token, huntID)
	if err != nil {
		m.handleConnectionFailure(gen, err)
		return
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  m.opts.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		m.handleConnectionFailure(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.state != models.StateConnecting {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.lastErr = ""
	m.setStateLocked(models.StateConnected)

	// Re-issue the pending subscription immediately so reconnects are
	// transparent to callers.
	if m.huntID != "" {
		m.sendControlLocked(models.ControlMessage{Action: models.ActionSubscribe, HuntID: m.huntID})
	}
	m.mu.Unlock()

	logging.Info().Str("hunt_id", huntID).Msg("Realtime connection established")

	go m.readLoop(conn, gen)
	if m.opts.PingInterval > 0 {
		go m.pingLoop(conn, gen)
	}
}

// buildURL constructs the dial URL with token and hunt id query parameters.
func (m *Manager) buildURL(token, huntID string) (string, error) {
	parsed, err := url.Parse(m.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	q := parsed.Query()
	q.Set("token", token)
	q.Set("huntId", huntID)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// readLoop consumes inbound frames until the socket dies, then routes the
// closure through the state machine.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("Realtime socket closed by server")
			} else {
				logging.Debug().Err(err).Msg("Realtime socket read error")
			}
			m.handleConnectionFailure(gen, err)
			return
		}
		m.handleMessage(gen, message)
	}
}

// pingLoop keeps the connection alive; a failed ping is treated as a dead
// socket and closes it, which wakes the read loop.
func (m *Manager) pingLoop(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		live := gen == m.gen && m.conn == conn
		m.mu.Unlock()
		if !live {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			logging.Debug().Err(err).Msg("Realtime ping failed")
			conn.Close()
			return
		}
	}
}

// handleMessage parses one inbound frame and folds it into the leaderboard
// state. Malformed JSON is logged and dropped; it never affects connection
// state.
func (m *Manager) handleMessage(gen uint64, data []byte) {
	var ev models.RealtimeEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		metrics.EventsDropped.Inc()
		logging.Error().Err(err).Msg("Failed to parse realtime event")
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.board = leaderboard.Apply(m.board, ev)
	m.mu.Unlock()

	metrics.EventsApplied.WithLabelValues(string(ev.Type)).Inc()
}

// handleConnectionFailure drives the close/dial-failure edge of the state
// machine: reconnecting while a hunt is subscribed and budget remains,
// disconnected otherwise.
func (m *Manager) handleConnectionFailure(gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return // A newer connection superseded this one
	}

	m.gen++
	gen = m.gen
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	if m.huntID == "" {
		m.setStateLocked(models.StateDisconnected)
		return
	}

	if m.attempts >= len(m.opts.BackoffSchedule) {
		m.setStateLocked(models.StateDisconnected)
		m.lastErr = connectionLostError
		logging.Warn().Err(cause).Int("attempts", m.attempts).Msg("Reconnect budget exhausted, giving up")
		return
	}

	delay := m.opts.BackoffSchedule[m.attempts]
	m.attempts++
	m.setStateLocked(models.StateReconnecting)
	metrics.WSReconnects.Inc()
	logging.Info().
		Dur("delay", delay).
		Int("attempt", m.attempts).
		Msg("Realtime connection lost, reconnecting")

	m.reconnectTimer = m.afterFunc(delay, func() {
		m.reconnect(gen)
	})
}

// reconnect fires when the backoff timer elapses and re-enters connecting.
func (m *Manager) reconnect(gen uint64) {
	ctx := context.Background()

	token, err := m.tokens.Token(ctx)
	if err != nil || token == "" {
		m.mu.Lock()
		if gen == m.gen && m.state == models.StateReconnecting {
			m.setStateLocked(models.StateDisconnected)
			m.lastErr = "Authentication required"
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.state != models.StateReconnecting {
		m.mu.Unlock()
		return // Disconnected (or superseded) while waiting
	}
	m.reconnectTimer = nil
	m.setStateLocked(models.StateConnecting)
	m.mu.Unlock()

	m.dial(ctx, gen, token)
}

// setStateLocked records a transition. Callers hold mu.
func (m *Manager) setStateLocked(state models.ConnectionState) {
	m.state = state
	metrics.SetConnectionState(string(state))
}

// sendControlLocked marshals and writes a control message. Callers hold mu,
// which also serializes writers on the socket.
func (m *Manager) sendControlLocked(msg models.ControlMessage) {
	if m.conn == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal control message")
		return
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Debug().Err(err).Str("action", string(msg.Action)).Msg("Control message write failed")
	}
}

// SubscribeToHunt sends a subscribe control message. Silent no-op unless
// connected; control messages do not queue.
func (m *Manager) SubscribeToHunt(huntID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateConnected {
		return
	}
	m.huntID = huntID
	m.board = leaderboard.NewState()
	m.sendControlLocked(models.ControlMessage{Action: models.ActionSubscribe, HuntID: huntID})
}

// UnsubscribeFromHunt sends an unsubscribe control message and clears the
// pending subscription. Silent no-op unless connected.
func (m *Manager) UnsubscribeFromHunt(huntID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateConnected {
		return
	}
	m.sendControlLocked(models.ControlMessage{Action: models.ActionUnsubscribe, HuntID: huntID})
	if m.huntID == huntID {
		m.huntID = ""
	}
}

// BroadcastEvent publishes an event to the hunt's stream. Silent no-op
// unless connected.
func (m *Manager) BroadcastEvent(ev models.RealtimeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateConnected || m.huntID == "" {
		return
	}
	m.sendControlLocked(models.ControlMessage{Action: models.ActionBroadcast, HuntID: m.huntID, Event: &ev})
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the persistent error string, empty when healthy.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// HuntID returns the currently subscribed hunt, empty when none.
func (m *Manager) HuntID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.huntID
}

// Leaderboard returns a copy of the current ranked leaderboard.
func (m *Manager) Leaderboard() []models.LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LeaderboardEntry(nil), m.board.Entries...)
}

// RecentEvents returns a copy of the recent-events ring, newest first.
func (m *Manager) RecentEvents() []models.RealtimeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RealtimeEvent(nil), m.board.Events...)
}

// ConnectedPlayers returns the connected-player set as a sorted slice.
func (m *Manager) ConnectedPlayers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := make([]string, 0, len(m.board.Players))
	for id := range m.board.Players {
		players = append(players, id)
	}
	sort.Strings(players)
	return players
}
