// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dila/internal/logger"
	"dila/internal/projector"
)

// Update is one attribute-change notification pushed to subscribers.
type Update struct {
	SessionID string                   `json:"session_id"`
	Name      string                   `json:"name,omitempty"`
	State     projector.AttributeState `json:"state"`
}

// managedSession pairs a live projector session with its hub identity.
type managedSession struct {
	id      string
	name    string
	session *projector.Session
}

// Manager owns one live session per configured projector and is the only
// surface the integration layer talks to. All session access is serialized
// through it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession
	byAddr   map[string]string
	subs     map[int]chan Update
	nextSub  int
	logger   zerolog.Logger

	pollInterval int
	clientOpts   []projector.Option
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*managedSession),
		byAddr:   make(map[string]string),
		subs:     make(map[int]chan Update),
		logger:   logger.With("hub"),
	}
}

// SetPollInterval overrides the reconciler poll interval, in seconds, for
// sessions added afterwards.
func (m *Manager) SetPollInterval(seconds int) {
	m.pollInterval = seconds
}

// SetClientOptions sets extra client options applied to sessions added
// afterwards. Used to shorten timeouts under test.
func (m *Manager) SetClientOptions(opts ...projector.Option) {
	m.clientOpts = opts
}

// AddDevice creates and starts a session for the endpoint. Creation
// succeeds even when the device is unreachable; the session keeps trying
// in the background and its state reads unknown until it connects.
func (m *Manager) AddDevice(endpoint projector.Endpoint, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := endpoint.Addr()
	if existing, ok := m.byAddr[addr]; ok {
		return "", fmt.Errorf("device %s already managed by session %s", addr, existing)
	}

	id := uuid.New().String()
	sess, err := projector.NewSession(endpoint, projector.SessionOption{
		ClientOptions: m.clientOpts,
		PollInterval:  m.pollInterval,
		OnChange: func(state projector.AttributeState) {
			m.notify(Update{SessionID: id, Name: name, State: state})
		},
		OnOffline: func() {
			m.logger.Warn().Str("session_id", id).Str("addr", addr).Msg("Device unreachable")
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	m.sessions[id] = &managedSession{id: id, name: name, session: sess}
	m.byAddr[addr] = id
	sess.Start()

	m.logger.Info().Str("session_id", id).Str("name", name).Str("addr", addr).Msg("Device added")
	return id, nil
}

// RemoveDevice stops and forgets the session.
func (m *Manager) RemoveDevice(id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", id)
	}
	delete(m.sessions, id)
	delete(m.byAddr, ms.session.Endpoint().Addr())
	m.mu.Unlock()

	// Stop outside the lock; teardown waits for the session workers
	ms.session.Stop()
	m.logger.Info().Str("session_id", id).Msg("Device removed")
	return nil
}

func (m *Manager) get(id string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return ms, nil
}

// Session returns the underlying projector session, for collaborators that
// speak the device abstraction directly.
func (m *Manager) Session(id string) (*projector.Session, error) {
	ms, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return ms.session, nil
}

// SendCommand routes a named intent to the device behind the session.
func (m *Manager) SendCommand(ctx context.Context, id, name string, args map[string]string) (string, error) {
	ms, err := m.get(id)
	if err != nil {
		return "", err
	}
	return ms.session.SendCommand(ctx, name, args)
}

// GetState returns the session's current published attributes.
func (m *Manager) GetState(id string) (projector.AttributeState, error) {
	ms, err := m.get(id)
	if err != nil {
		return projector.AttributeState{}, err
	}
	return ms.session.State(), nil
}

// DeviceEntry describes one managed session.
type DeviceEntry struct {
	SessionID       string                   `json:"session_id"`
	Name            string                   `json:"name"`
	Address         string                   `json:"address"`
	ConnectionState string                   `json:"connection_state"`
	State           projector.AttributeState `json:"state"`
}

// Devices lists all managed sessions.
func (m *Manager) Devices() []DeviceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]DeviceEntry, 0, len(m.sessions))
	for _, ms := range m.sessions {
		entries = append(entries, DeviceEntry{
			SessionID:       ms.id,
			Name:            ms.name,
			Address:         ms.session.Endpoint().Addr(),
			ConnectionState: ms.session.ConnectionState().String(),
			State:           ms.session.State(),
		})
	}
	return entries
}

// Subscribe registers for attribute-change notifications. The returned
// cancel function must be called to release the subscription.
func (m *Manager) Subscribe() (<-chan Update, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.nextSub
	m.nextSub++
	ch := make(chan Update, 16)
	m.subs[key] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[key]; ok {
			delete(m.subs, key)
			close(ch)
		}
	}
	return ch, cancel
}

// notify fans an update out to subscribers. Slow subscribers lose updates
// rather than blocking the reconciler.
func (m *Manager) notify(u Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, ch := range m.subs {
		select {
		case ch <- u:
		default:
			m.logger.Warn().Int("subscriber", key).Msg("Subscriber too slow, dropping update")
		}
	}
}

// Shutdown stops every session and releases all transports.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.sessions = make(map[string]*managedSession)
	m.byAddr = make(map[string]string)
	m.mu.Unlock()

	m.logger.Info().Int("session_count", len(sessions)).Msg("Shutting down session manager")
	for _, ms := range sessions {
		ms.session.Stop()
	}
}
