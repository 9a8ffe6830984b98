package projector

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"dila/internal/protocol"
)

// Endpoint is the immutable identity of one projector.
type Endpoint struct {
	Host     string
	Port     int
	Password string
}

// Addr returns the dialable host:port, applying the protocol default port.
func (e Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = protocol.Port
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// ConnectionState tracks where a session is in its connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateHandshaking
	StateAuthenticating
	StateReady
	StateReconnecting
	StateFailed
)

// String returns a readable state name for logging.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// PowerState is the published power attribute.
type PowerState string

const (
	PowerOn      PowerState = "ON"
	PowerOff     PowerState = "OFF"
	PowerStandby PowerState = "STANDBY"
	PowerWarming PowerState = "WARMING"
	PowerCooling PowerState = "COOLING"
	PowerUnknown PowerState = "UNKNOWN"
)

// AttributeState is the externally published view of a projector. It is
// derived from device responses and never set ahead of them.
type AttributeState struct {
	Power       PowerState        `json:"power"`
	Input       string            `json:"input,omitempty"`
	Sensors     map[string]string `json:"sensors,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Equal compares the device-derived attributes, ignoring LastUpdated.
// Used for the reconciler's publish debounce.
func (a AttributeState) Equal(b AttributeState) bool {
	if a.Power != b.Power || a.Input != b.Input {
		return false
	}
	if len(a.Sensors) != len(b.Sensors) {
		return false
	}
	for k, v := range a.Sensors {
		if b.Sensors[k] != v {
			return false
		}
	}
	return true
}

// Command is one wire-level exchange: an operation (acknowledged write) or
// a reference (query answered with data).
type Command struct {
	Code  string
	Query bool
}

// Operation builds a fire-and-forget command.
func Operation(code string) Command {
	return Command{Code: code}
}

// Reference builds a query command.
func Reference(code string) Command {
	return Command{Code: code, Query: true}
}
