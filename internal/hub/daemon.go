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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dila/internal/history"
	"dila/internal/logger"
)

// Daemon ties the config, session manager, history store and control API
// together into one long-running process.
type Daemon struct {
	config     *Config
	configPath string
	manager    *Manager
	nonceCache *NonceCache
	store      *history.Store
	api        *APIServer
	logger     zerolog.Logger

	running bool
	mutex   sync.RWMutex
	stop    chan struct{}
}

// NewDaemon loads the config and wires the daemon components. Nothing is
// started until Start.
func NewDaemon(configPath string) (*Daemon, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	d := &Daemon{
		config:     config,
		configPath: configPath,
		manager:    NewManager(),
		nonceCache: NewNonceCache(50, time.Hour),
		logger:     logger.With("daemon"),
		stop:       make(chan struct{}),
	}
	d.manager.SetPollInterval(config.Hub.PollInterval)

	if config.Hub.HistoryDB != "" {
		store, err := history.Open(config.Hub.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		d.store = store
	}

	d.api = NewAPIServer(d.manager, d.nonceCache, d.store)
	return d, nil
}

// Start brings every configured device online, starts the control API and
// blocks until a shutdown signal or Stop.
func (d *Daemon) Start() error {
	d.mutex.Lock()
	if d.running {
		d.mutex.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.mutex.Unlock()

	d.logger.Info().
		Str("hub_id", d.config.Hub.ID).
		Int("device_count", len(d.config.Devices)).
		Msg("Starting hub daemon")

	// Adding a device never fails on an unreachable projector; the
	// session keeps dialing in the background.
	for _, dev := range d.config.Devices {
		id, err := d.manager.AddDevice(dev.Endpoint(), dev.Name)
		if err != nil {
			d.Stop()
			return fmt.Errorf("failed to add device %s: %w", dev.ID, err)
		}
		d.logger.Info().
			Str("device_id", dev.ID).
			Str("session_id", id).
			Str("addr", dev.Endpoint().Addr()).
			Msg("Device session started")
	}

	updates, unsubscribe := d.manager.Subscribe()
	defer unsubscribe()
	go d.recordUpdates(updates)

	apiErr := make(chan error, 1)
	if d.config.Hub.APIAddr != "" {
		go func() {
			apiErr <- d.api.Start(d.config.Hub.APIAddr)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	d.logger.Info().Msg("Hub daemon started successfully")

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		return d.Stop()
	case err := <-apiErr:
		if errors.Is(err, http.ErrServerClosed) {
			return d.Stop()
		}
		d.logger.Error().Err(err).Msg("API server failed")
		d.Stop()
		return err
	case <-d.stop:
		return nil
	}
}

// recordUpdates logs attribute changes and persists them when history is
// enabled. Runs until the manager closes the subscription.
func (d *Daemon) recordUpdates(updates <-chan Update) {
	for u := range updates {
		d.logger.Info().
			Str("session_id", u.SessionID).
			Str("power", string(u.State.Power)).
			Str("input", u.State.Input).
			Msg("Device state changed")

		if d.store == nil {
			continue
		}
		if err := d.store.Record(u.SessionID, u.Name, u.State); err != nil {
			d.logger.Error().Err(err).Str("session_id", u.SessionID).Msg("Failed to record history")
		}
	}
}

// Stop tears the daemon down: API first so no new commands arrive, then
// the sessions, then the stores.
func (d *Daemon) Stop() error {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return nil
	}
	d.running = false
	d.mutex.Unlock()

	d.logger.Info().Msg("Stopping hub daemon")

	if err := d.api.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop API server")
	}
	d.manager.Shutdown()
	d.nonceCache.Shutdown()
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close history store")
		}
	}

	close(d.stop)
	d.logger.Info().Msg("Hub daemon stopped")
	return nil
}

// IsRunning reports whether Start has been called and Stop has not.
func (d *Daemon) IsRunning() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.running
}

// Manager exposes the session manager, for the CLI and tests.
func (d *Daemon) Manager() *Manager {
	return d.manager
}
