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
	"regexp"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"dila/internal/device"
)

// NonceResponse represents a cached response for a specific nonce
type NonceResponse struct {
	Nonce     string                 `json:"nonce"`
	Response  *device.ActionResponse `json:"response"`
	Timestamp time.Time              `json:"timestamp"`
}

// NonceCache deduplicates retried commands per session. A client retrying
// a command over the HTTP API reuses its nonce and gets the original
// outcome instead of pressing the button twice.
type NonceCache struct {
	sessionCaches map[string]*lru.Cache[string, *NonceResponse]
	mutex         sync.RWMutex
	maxSize       int
	expiration    time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewNonceCache creates a nonce cache holding maxSize entries per session.
func NewNonceCache(maxSize int, expiration time.Duration) *NonceCache {
	if maxSize <= 0 {
		maxSize = 50
	}
	if expiration <= 0 {
		expiration = time.Hour
	}

	nc := &NonceCache{
		sessionCaches: make(map[string]*lru.Cache[string, *NonceResponse]),
		maxSize:       maxSize,
		expiration:    expiration,
		stop:          make(chan struct{}),
	}

	go nc.cleanupExpired()

	return nc
}

// CheckNonce returns the cached response for a nonce, if present and fresh.
func (nc *NonceCache) CheckNonce(sessionID, nonce string) (*device.ActionResponse, bool) {
	if nonce == "" {
		return nil, false
	}

	nc.mutex.RLock()
	cache, ok := nc.sessionCaches[sessionID]
	nc.mutex.RUnlock()
	if !ok {
		return nil, false
	}

	entry, ok := cache.Get(nonce)
	if !ok {
		return nil, false
	}
	if time.Since(entry.Timestamp) > nc.expiration {
		cache.Remove(nonce)
		return nil, false
	}
	return entry.Response, true
}

// StoreResponse caches a response under the nonce.
func (nc *NonceCache) StoreResponse(sessionID, nonce string, response *device.ActionResponse) {
	if nonce == "" {
		return
	}

	nc.mutex.Lock()
	cache, ok := nc.sessionCaches[sessionID]
	if !ok {
		cache, _ = lru.New[string, *NonceResponse](nc.maxSize)
		nc.sessionCaches[sessionID] = cache
	}
	nc.mutex.Unlock()

	cache.Add(nonce, &NonceResponse{
		Nonce:     nonce,
		Response:  response,
		Timestamp: time.Now(),
	})
}

// ClearSession drops all cached nonces for one session.
func (nc *NonceCache) ClearSession(sessionID string) {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	delete(nc.sessionCaches, sessionID)
}

// Shutdown stops the background cleanup.
func (nc *NonceCache) Shutdown() {
	nc.stopOnce.Do(func() {
		close(nc.stop)
	})
}

// cleanupExpired periodically evicts entries past their expiration.
func (nc *NonceCache) cleanupExpired() {
	ticker := time.NewTicker(nc.expiration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-nc.stop:
			return
		case <-ticker.C:
			nc.mutex.RLock()
			caches := make([]*lru.Cache[string, *NonceResponse], 0, len(nc.sessionCaches))
			for _, cache := range nc.sessionCaches {
				caches = append(caches, cache)
			}
			nc.mutex.RUnlock()

			for _, cache := range caches {
				for _, nonce := range cache.Keys() {
					if entry, ok := cache.Peek(nonce); ok && time.Since(entry.Timestamp) > nc.expiration {
						cache.Remove(nonce)
					}
				}
			}
		}
	}
}

var nonceFormat = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidateNonce checks the nonce format: URL-safe, 8 to 64 characters.
func ValidateNonce(nonce string) bool {
	return nonceFormat.MatchString(nonce)
}
