package projector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dila/internal/device"
	"dila/internal/logger"
	"dila/internal/protocol"
)

// Intent names accepted by SendCommand.
const (
	IntentPowerOn     = "powerOn"
	IntentPowerOff    = "powerOff"
	IntentPowerToggle = "powerToggle"
	IntentSetInput    = "setInput"
	IntentRemote      = "remote"
	IntentOperation   = "op"
	IntentQuery       = "query"
)

// SourceList is the set of selectable inputs on this device family.
var SourceList = []string{"HDMI1", "HDMI2"}

// Session is the live control context for one projector: one command
// client plus one reconciler.
type Session struct {
	endpoint   Endpoint
	client     *Client
	reconciler *Reconciler
	logger     zerolog.Logger
}

// SessionOption tweaks session construction.
type SessionOption struct {
	ClientOptions []Option
	PollInterval  int // seconds, 0 keeps the default
	OnChange      func(AttributeState)
	OnOffline     func()
}

// NewSession builds the client and reconciler for one endpoint. The
// connection is not opened until Start.
func NewSession(endpoint Endpoint, opt SessionOption) (*Session, error) {
	client, err := NewClient(endpoint, opt.ClientOptions...)
	if err != nil {
		return nil, err
	}

	rec := NewReconciler(client, opt.OnChange, opt.OnOffline)
	if opt.PollInterval > 0 {
		rec.SetInterval(time.Duration(opt.PollInterval) * time.Second)
	}

	return &Session{
		endpoint:   endpoint,
		client:     client,
		reconciler: rec,
		logger:     logger.With("session").With().Str("addr", endpoint.Addr()).Logger(),
	}, nil
}

// Start brings up the connection worker and the poller.
func (s *Session) Start() {
	s.client.Start()
	s.reconciler.Start()
}

// Stop tears the session down deterministically: polling halts, the
// pending request resolves with ErrCancelled and the transport is closed.
func (s *Session) Stop() {
	s.reconciler.Stop()
	s.client.Stop()
}

// Endpoint returns the session's immutable device identity.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// ConnectionState returns where the session is in its connection lifecycle.
func (s *Session) ConnectionState() ConnectionState {
	return s.client.State()
}

// State returns the current published attributes.
func (s *Session) State() AttributeState {
	return s.reconciler.State()
}

// SendCommand resolves a named intent into wire exchanges. The returned
// string is the device's answer for queries, empty for operations.
func (s *Session) SendCommand(ctx context.Context, name string, args map[string]string) (string, error) {
	s.logger.Debug().Str("command", name).Interface("args", args).Msg("Sending command")

	switch name {
	case IntentPowerOn:
		return "", s.powerOn(ctx)
	case IntentPowerOff:
		return "", s.powerOff(ctx)
	case IntentPowerToggle:
		return "", s.powerToggle(ctx)
	case IntentSetInput:
		return "", s.setInput(ctx, args["source"])
	case IntentRemote:
		code, ok := protocol.RemoteKeys[strings.ToUpper(args["code"])]
		if !ok {
			// Allow raw RC73xx codes alongside button names
			if raw := args["code"]; strings.HasPrefix(raw, "RC73") {
				code = raw
			} else {
				return "", fmt.Errorf("unknown remote key: %q", args["code"])
			}
		}
		_, err := s.client.Execute(ctx, Operation(code))
		return "", err
	case IntentOperation:
		if args["code"] == "" {
			return "", fmt.Errorf("operation requires a code argument")
		}
		_, err := s.client.Execute(ctx, Operation(args["code"]))
		return "", err
	case IntentQuery:
		if args["code"] == "" {
			return "", fmt.Errorf("query requires a code argument")
		}
		return s.client.Execute(ctx, Reference(args["code"]))
	}

	if code, ok := protocol.SimpleCommands[strings.ToUpper(name)]; ok {
		_, err := s.client.Execute(ctx, Operation(code))
		return "", err
	}
	return "", fmt.Errorf("unknown command: %q", name)
}

// powerOn turns the lamp on only when the device itself reports it is off
// or in standby.
func (s *Session) powerOn(ctx context.Context) error {
	power, err := s.client.Execute(ctx, Reference(protocol.QueryPower))
	if err != nil {
		return err
	}
	if power == protocol.PowerCodeStandby {
		if _, err = s.client.Execute(ctx, Operation(protocol.OpPowerOn)); err == nil {
			// Optimistic hint; the next poll confirms it.
			s.reconciler.Push(protocol.PowerCodeWarming, "")
		}
	}
	return err
}

func (s *Session) powerOff(ctx context.Context) error {
	power, err := s.client.Execute(ctx, Reference(protocol.QueryPower))
	if err != nil {
		return err
	}
	if power == protocol.PowerCodeOn {
		if _, err = s.client.Execute(ctx, Operation(protocol.OpPowerOff)); err == nil {
			s.reconciler.Push(protocol.PowerCodeCooling, "")
		}
	}
	return err
}

// powerToggle queries the device first; the published attributes are never
// trusted for the decision.
func (s *Session) powerToggle(ctx context.Context) error {
	power, err := s.client.Execute(ctx, Reference(protocol.QueryPower))
	if err != nil {
		return err
	}
	switch power {
	case protocol.PowerCodeOn:
		if _, err = s.client.Execute(ctx, Operation(protocol.OpPowerOff)); err == nil {
			s.reconciler.Push(protocol.PowerCodeCooling, "")
		}
	case protocol.PowerCodeStandby:
		if _, err = s.client.Execute(ctx, Operation(protocol.OpPowerOn)); err == nil {
			s.reconciler.Push(protocol.PowerCodeWarming, "")
		}
	default:
		// Warming or cooling: the device will not accept a transition
		return fmt.Errorf("projector is busy (power code %q)", power)
	}
	return err
}

func (s *Session) setInput(ctx context.Context, source string) error {
	var code string
	switch strings.ToUpper(source) {
	case "HDMI1", "HDMI 1":
		code = protocol.RemoteHDMI1
	case "HDMI2", "HDMI 2":
		code = protocol.RemoteHDMI2
	default:
		return fmt.Errorf("unknown source: %q", source)
	}
	_, err := s.client.Execute(ctx, Operation(code))
	return err
}

// Process implements device.Device, mapping a JSON action onto SendCommand.
func (s *Session) Process(actionJSON []byte) (*device.ActionResponse, error) {
	request, err := device.ParseActionRequest(actionJSON)
	if err != nil {
		return &device.ActionResponse{Success: false, Error: err.Error()}, nil
	}

	name := request.Action
	args := request.Parameters
	switch request.Type {
	case device.ActionTypeIntent:
	case device.ActionTypeRemote:
		args = map[string]string{"code": request.Action}
		name = IntentRemote
	case device.ActionTypeOperation:
		args = map[string]string{"code": request.Action}
		name = IntentOperation
	case device.ActionTypeQuery:
		args = map[string]string{"code": request.Action}
		name = IntentQuery
	default:
		return &device.ActionResponse{Success: false, Error: fmt.Sprintf("unknown action type: %q", request.Type)}, nil
	}

	data, err := s.SendCommand(context.Background(), name, args)
	if err != nil {
		// Transport and admission failures surface as errors so callers
		// can tell them apart from a command the device refused.
		for _, sentinel := range []error{ErrConnectionLost, ErrAuth, ErrOverloaded, ErrBusy, ErrCancelled, ErrTimeout} {
			if errors.Is(err, sentinel) {
				return nil, err
			}
		}
		return &device.ActionResponse{Success: false, Error: err.Error()}, nil
	}
	resp := &device.ActionResponse{Success: true}
	if data != "" {
		resp.Data = data
	}
	return resp, nil
}

// GetDeviceInfo implements device.Device.
func (s *Session) GetDeviceInfo() device.DeviceInfo {
	return device.DeviceInfo{
		Type:    "jvc_projector",
		Model:   "JVC D-ILA",
		Address: s.endpoint.Addr(),
		Capabilities: []string{
			"power_control",
			"input_select",
			"remote_control",
			"picture_control",
		},
	}
}

