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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"dila/internal/logger"
	"dila/internal/protocol"
)

// request is one in-flight or queued exchange. It is resolved exactly once:
// with the device's answer, or with a typed error on timeout, connection
// loss or session stop.
type request struct {
	cmd       Command
	submitted time.Time
	done      chan result
}

type result struct {
	data string
	err  error
}

// Client sequences handshake, authentication and command exchanges for one
// projector. Commands are strictly single-flight: the protocol has no
// request pipelining, so queued commands are delivered to the device in
// FIFO submission order, one at a time.
type Client struct {
	endpoint Endpoint
	dialer   Dialer
	logger   zerolog.Logger

	handshakeTimeout time.Duration
	requestTimeout   time.Duration
	backoffMin       time.Duration
	backoffMax       time.Duration

	queue    chan *request
	pending  atomic.Int32
	failFast bool
	state    atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Client.
type Option func(*Client) error

// WithDialer substitutes the connection dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		c.dialer = d
		return nil
	}
}

// WithHandshakeTimeout bounds the greeting and authentication exchange.
// Default is 3 seconds.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("handshake timeout must be positive")
		}
		c.handshakeTimeout = d
		return nil
	}
}

// WithRequestTimeout bounds a single command exchange. Default is 5 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithQueueDepth sets how many commands may wait behind the in-flight one
// before callers get ErrOverloaded. Default is 8.
func WithQueueDepth(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return errors.New("queue depth must be at least 1")
		}
		c.queue = make(chan *request, n)
		return nil
	}
}

// WithFailFast rejects new commands with ErrBusy while one is pending,
// instead of queuing them.
func WithFailFast() Option {
	return func(c *Client) error {
		c.failFast = true
		return nil
	}
}

// WithBackoff sets the reconnect backoff range. Defaults are 1s to 30s.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) error {
		if min <= 0 || max < min {
			return errors.New("invalid backoff range")
		}
		c.backoffMin = min
		c.backoffMax = max
		return nil
	}
}

// NewClient creates a client for one projector endpoint. The connection is
// not opened until Start.
func NewClient(endpoint Endpoint, opts ...Option) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		endpoint:         endpoint,
		dialer:           &net.Dialer{},
		logger:           logger.With("projector").With().Str("addr", endpoint.Addr()).Logger(),
		handshakeTimeout: 3 * time.Second,
		requestTimeout:   5 * time.Second,
		backoffMin:       time.Second,
		backoffMax:       30 * time.Second,
		queue:            make(chan *request, 8),
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return c, nil
}

// Start launches the connection worker.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Stop tears the session down: the in-flight and queued requests resolve
// with ErrCancelled, the reconnect timer is cancelled and the transport is
// released. Blocks until the worker has exited.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.done
	})
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(s ConnectionState) {
	old := ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug().Stringer("from", old).Stringer("to", s).Msg("Connection state changed")
	}
}

// Execute submits one command and waits for its outcome. Fails fast with
// ErrOverloaded when the queue is full, ErrAuth when the session is in the
// terminal failed state, and ErrConnectionLost while the device is
// unreachable.
func (c *Client) Execute(ctx context.Context, cmd Command) (string, error) {
	switch c.State() {
	case StateReady:
	case StateFailed:
		return "", ErrAuth
	default:
		return "", ErrConnectionLost
	}

	if c.failFast && c.pending.Load() > 0 {
		return "", ErrBusy
	}

	req := &request{cmd: cmd, submitted: time.Now(), done: make(chan result, 1)}
	select {
	case c.queue <- req:
		c.pending.Add(1)
	default:
		return "", ErrOverloaded
	}

	select {
	case res := <-req.done:
		return res.data, res.err
	case <-c.ctx.Done():
		return "", ErrCancelled
	case <-ctx.Done():
		// The worker still resolves the request; the caller stops waiting.
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}

// run is the connection worker. It owns the transport and is the only
// goroutine that mutates connection state.
func (c *Client) run() {
	defer close(c.done)
	defer c.drainQueue(ErrCancelled)

	backoff := c.backoffMin
	for c.ctx.Err() == nil {
		c.setState(StateConnecting)
		tr, err := c.connect()
		if err != nil {
			if errors.Is(err, ErrAuth) {
				c.logger.Error().Err(err).Msg("Projector rejected credentials, session failed")
				c.failTerminally()
				return
			}
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Connect failed, will retry")
			c.setState(StateReconnecting)
			if !c.waitBackoff(backoff) {
				c.setState(StateDisconnected)
				return
			}
			backoff = nextBackoff(backoff, c.backoffMax)
			continue
		}

		backoff = c.backoffMin
		c.setState(StateReady)
		c.logger.Info().Msg("Projector session ready")

		err = c.serve(tr)
		tr.Close()
		if c.ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		c.logger.Warn().Err(err).Msg("Connection lost, reconnecting")
		c.setState(StateReconnecting)
		if !c.waitBackoff(backoff) {
			c.setState(StateDisconnected)
			return
		}
		backoff = nextBackoff(backoff, c.backoffMax)
	}
	c.setState(StateDisconnected)
}

// connect dials the projector and completes the greeting and authentication
// exchange within the handshake timeout.
func (c *Client) connect() (*Transport, error) {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.handshakeTimeout)
	defer cancel()

	tr, err := OpenTransport(dialCtx, c.dialer, c.endpoint.Addr())
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.handshakeTimeout)

	c.setState(StateHandshaking)
	greeting, err := readExactly(tr, len(protocol.HandshakeGreeting), deadline)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("%w: greeting: %v", ErrHandshake, err)
	}
	if !bytes.Equal(greeting, protocol.HandshakeGreeting) {
		tr.Close()
		return nil, fmt.Errorf("%w: unexpected greeting % x", ErrHandshake, greeting)
	}

	if c.endpoint.Password != "" {
		c.setState(StateAuthenticating)
	}
	if err := tr.Send(protocol.HandshakeReply(c.endpoint.Password)); err != nil {
		tr.Close()
		return nil, fmt.Errorf("%w: request: %v", ErrHandshake, err)
	}

	verdict, err := readExactly(tr, len(protocol.HandshakeAck), deadline)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("%w: verdict: %v", ErrHandshake, err)
	}
	switch {
	case bytes.Equal(verdict, protocol.HandshakeAck):
		return tr, nil
	case bytes.Equal(verdict, protocol.HandshakeNak):
		tr.Close()
		return nil, ErrAuth
	default:
		tr.Close()
		return nil, fmt.Errorf("%w: unexpected verdict % x", ErrHandshake, verdict)
	}
}

// serve processes queued requests one at a time until the connection fails
// or the session stops.
func (c *Client) serve(tr *Transport) error {
	// Unblock a pending read when the session is stopped so teardown is
	// deterministic rather than waiting out the read deadline.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-c.ctx.Done():
			tr.Close()
		case <-watchDone:
		}
	}()

	rd := &frameReader{tr: tr}
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case req := <-c.queue:
			data, err := c.exchange(rd, req.cmd)
			if err != nil {
				if c.ctx.Err() != nil {
					c.resolve(req, result{err: ErrCancelled})
					return nil
				}
				// Timeouts and protocol violations are connection-fatal:
				// a half-finished exchange cannot be resynchronized.
				c.resolve(req, result{err: fmt.Errorf("%w: %w", ErrConnectionLost, err)})
				c.drainQueue(ErrConnectionLost)
				return err
			}
			c.resolve(req, result{data: data})
		}
	}
}

// exchange performs one wire exchange: send the frame, await the ack and,
// for references, the data response.
func (c *Client) exchange(rd *frameReader, cmd Command) (string, error) {
	deadline := time.Now().Add(c.requestTimeout)

	var wire []byte
	if cmd.Query {
		wire = protocol.EncodeReference(cmd.Code)
	} else {
		wire = protocol.EncodeOperation(cmd.Code)
	}
	if err := rd.tr.Send(wire); err != nil {
		return "", err
	}

	for {
		f, err := rd.readFrame(deadline)
		if err != nil {
			return "", err
		}
		switch {
		case protocol.AckMatches(f, cmd.Code):
			if !cmd.Query {
				return "", nil
			}
			// Some firmware acks a reference before answering it
		case cmd.Query && protocol.ResponseMatches(f, cmd.Code):
			return string(f.Data), nil
		default:
			return "", fmt.Errorf("%w: unexpected %s frame for %q", ErrProtocol, f.Type, cmd.Code)
		}
	}
}

// resolve delivers the outcome to the caller. A request is resolved
// exactly once.
func (c *Client) resolve(req *request, res result) {
	c.pending.Add(-1)
	req.done <- res
}

// drainQueue resolves every queued request with the given error.
func (c *Client) drainQueue(err error) {
	for {
		select {
		case req := <-c.queue:
			c.resolve(req, result{err: err})
		default:
			return
		}
	}
}

// failTerminally parks the worker in the failed state, rejecting queued
// and late-arriving requests until the session is stopped.
func (c *Client) failTerminally() {
	c.setState(StateFailed)
	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.queue:
			c.resolve(req, result{err: ErrAuth})
		}
	}
}

// waitBackoff sleeps for the backoff period, rejecting requests that race
// in while disconnected. Returns false when the session is stopping.
func (c *Client) waitBackoff(d time.Duration) bool {
	timer := time.NewTimer(jitter(d))
	defer timer.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return false
		case req := <-c.queue:
			c.resolve(req, result{err: ErrConnectionLost})
		case <-timer.C:
			return true
		}
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	return next
}

// jitter spreads reconnect attempts by up to 25% of the base delay.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

// frameReader accumulates connection bytes and yields complete frames.
type frameReader struct {
	tr  *Transport
	buf []byte
}

func (r *frameReader) readFrame(deadline time.Time) (protocol.Frame, error) {
	for {
		if len(r.buf) > 0 {
			f, n, err := protocol.Decode(r.buf)
			if err == nil {
				r.buf = r.buf[n:]
				return f, nil
			}
			if !errors.Is(err, protocol.ErrNeedMoreData) {
				return protocol.Frame{}, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
		}
		chunk := make([]byte, 256)
		n, err := r.tr.Receive(chunk, deadline)
		if err != nil {
			return protocol.Frame{}, err
		}
		r.buf = append(r.buf, chunk[:n]...)
	}
}

// readExactly reads n bytes of handshake traffic before the deadline.
func readExactly(tr *Transport, n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		chunk := make([]byte, n-len(buf))
		read, err := tr.Receive(chunk, deadline)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk[:read]...)
	}
	return buf, nil
}
