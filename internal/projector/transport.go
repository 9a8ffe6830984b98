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

package projector

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Dialer abstracts connection establishment so tests can substitute their
// own. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Transport owns the raw connection to a projector. It never retries;
// retry policy belongs to the Client.
type Transport struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// OpenTransport dials the endpoint and wraps the connection.
func OpenTransport(ctx context.Context, dialer Dialer, addr string) (*Transport, error) {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}
	return &Transport{conn: conn}, nil
}

// Send writes the full buffer to the connection.
func (t *Transport) Send(b []byte) error {
	if _, err := t.conn.Write(b); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionLost, err)
	}
	return nil
}

// Receive reads up to len(b) bytes, waiting no longer than the deadline.
func (t *Transport) Receive(b []byte, deadline time.Time) (int, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("%w: set deadline: %v", ErrConnectionLost, err)
	}
	n, err := t.conn.Read(b)
	if err != nil {
		if os.IsTimeout(err) {
			return n, fmt.Errorf("%w: no data before deadline", ErrTimeout)
		}
		return n, fmt.Errorf("%w: read: %v", ErrConnectionLost, err)
	}
	return n, nil
}

// Close releases the connection. Safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
