package projector

import "errors"

// Error taxonomy of the control core. Transient errors are absorbed by the
// reconnect state machine; ErrAuth is terminal until the session is
// reconfigured.
var (
	// ErrConnection means the transport could not be established.
	ErrConnection = errors.New("connection failed")

	// ErrHandshake means the greeting exchange failed or timed out.
	ErrHandshake = errors.New("handshake failed")

	// ErrAuth means the projector rejected the configured password.
	ErrAuth = errors.New("authentication rejected")

	// ErrProtocol means a malformed frame was received. The byte stream
	// cannot be resynchronized, so the connection is dropped.
	ErrProtocol = errors.New("protocol violation")

	// ErrTimeout means the device did not answer within the deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrOverloaded means the command queue is full.
	ErrOverloaded = errors.New("command queue full")

	// ErrBusy means a command is already pending and the client is
	// configured to reject rather than queue.
	ErrBusy = errors.New("command already pending")

	// ErrCancelled means the session was stopped with the request pending.
	ErrCancelled = errors.New("request cancelled")

	// ErrConnectionLost means the device is unreachable or the connection
	// dropped mid-request.
	ErrConnectionLost = errors.New("connection lost")
)
