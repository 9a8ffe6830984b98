package device

import (
	"encoding/json"
	"fmt"
)

// Device represents a controllable device that accepts JSON-encoded actions
type Device interface {
	// Process handles a JSON-encoded action and executes the corresponding operation
	Process(actionJSON []byte) (*ActionResponse, error)

	// GetDeviceInfo returns basic information about the device
	GetDeviceInfo() DeviceInfo
}

// DeviceInfo contains basic information about a device
type DeviceInfo struct {
	Type         string   `json:"type"`
	Model        string   `json:"model"`
	Address      string   `json:"address"`
	Capabilities []string `json:"capabilities"`
}

// ActionType represents the type of action to perform
type ActionType string

const (
	// ActionTypeIntent is a named high-level command (powerOn, setInput, ...)
	ActionTypeIntent ActionType = "intent"
	// ActionTypeRemote is a remote key press by button name
	ActionTypeRemote ActionType = "remote"
	// ActionTypeOperation is a raw operation code sent verbatim
	ActionTypeOperation ActionType = "operation"
	// ActionTypeQuery is a raw reference code sent verbatim
	ActionTypeQuery ActionType = "query"
)

// ActionRequest represents a JSON action request
type ActionRequest struct {
	Type       ActionType        `json:"type"`
	Action     string            `json:"action"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ActionResponse represents the response from processing an action
type ActionResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ParseActionRequest parses JSON input into an ActionRequest
func ParseActionRequest(actionJSON []byte) (*ActionRequest, error) {
	var request ActionRequest
	if err := json.Unmarshal(actionJSON, &request); err != nil {
		return nil, fmt.Errorf("failed to parse action request: %w", err)
	}

	if request.Type == "" {
		return nil, fmt.Errorf("action type is required")
	}
	if request.Action == "" {
		return nil, fmt.Errorf("action is required")
	}

	return &request, nil
}
