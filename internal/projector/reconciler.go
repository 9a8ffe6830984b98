package projector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dila/internal/logger"
	"dila/internal/protocol"
)

// rawUpdate is one device observation. Poll results and async push
// messages feed the same channel, so the reconciler is the only component
// that interprets raw device codes.
type rawUpdate struct {
	power   string
	input   string
	sensors map[string]string
	err     error
}

// sensorQueries are the auxiliary attributes polled while the lamp is on.
var sensorQueries = map[string]string{
	"picture_mode":  protocol.QueryPictureMode,
	"low_latency":   protocol.QueryLowLatency,
	"mask":          protocol.QueryMask,
	"lamp_power":    protocol.QueryLampPower,
	"lens_aperture": protocol.QueryLensAperture,
}

// Reconciler keeps the published AttributeState consistent with the
// projector by periodic polling. Updates are debounced: a change is only
// published when it differs from the last published value.
type Reconciler struct {
	client      *Client
	interval    time.Duration
	maxFailures int
	logger      zerolog.Logger

	onChange  func(AttributeState)
	onOffline func()

	mu       sync.RWMutex
	current  AttributeState
	failures int

	updates chan rawUpdate
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReconciler creates a reconciler for one client. onChange fires on
// every published attribute change; onOffline fires once sustained poll
// failure degrades the state to unknown. Either may be nil.
func NewReconciler(client *Client, onChange func(AttributeState), onOffline func()) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		client:      client,
		interval:    10 * time.Second,
		maxFailures: 3,
		logger:      logger.With("reconciler").With().Str("addr", client.endpoint.Addr()).Logger(),
		onChange:    onChange,
		onOffline:   onOffline,
		current:     AttributeState{Power: PowerUnknown, LastUpdated: time.Now()},
		updates:     make(chan rawUpdate, 4),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetInterval overrides the poll interval. Call before Start.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// SetMaxFailures overrides how many consecutive poll failures degrade the
// published state to unknown. Call before Start.
func (r *Reconciler) SetMaxFailures(n int) {
	if n > 0 {
		r.maxFailures = n
	}
}

// Start launches the poll and reconcile workers.
func (r *Reconciler) Start() {
	r.wg.Add(2)
	go r.pollLoop()
	go r.reconcileLoop()
}

// Stop halts polling. Blocks until both workers have exited.
func (r *Reconciler) Stop() {
	r.cancel()
	r.wg.Wait()
}

// State returns a copy of the current published attributes.
func (r *Reconciler) State() AttributeState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyState(r.current)
}

// Push injects an asynchronous observation, e.g. a state report arriving
// outside the poll cycle. Raw codes are interpreted the same way as poll
// results.
func (r *Reconciler) Push(power, input string) {
	select {
	case r.updates <- rawUpdate{power: power, input: input}:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) pollLoop() {
	defer r.wg.Done()

	// Tick first: polling before the client has connected would only burn
	// a failure count.
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce()
		}
	}
}

func (r *Reconciler) pollOnce() {
	power, err := r.client.Execute(r.ctx, Reference(protocol.QueryPower))
	if err != nil {
		r.deliver(rawUpdate{err: err})
		return
	}

	u := rawUpdate{power: power}
	if power == protocol.PowerCodeOn {
		input, err := r.client.Execute(r.ctx, Reference(protocol.QueryInput))
		if err != nil {
			r.deliver(rawUpdate{err: err})
			return
		}
		u.input = input

		// Sensor failures are not poll failures; the core attributes
		// already answered.
		u.sensors = make(map[string]string, len(sensorQueries))
		for name, code := range sensorQueries {
			value, err := r.client.Execute(r.ctx, Reference(code))
			if err != nil {
				r.logger.Debug().Err(err).Str("sensor", name).Msg("Sensor query failed")
				continue
			}
			u.sensors[name] = value
		}
	}
	r.deliver(u)
}

func (r *Reconciler) deliver(u rawUpdate) {
	select {
	case r.updates <- u:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) reconcileLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case u := <-r.updates:
			r.reconcile(u)
		}
	}
}

func (r *Reconciler) reconcile(u rawUpdate) {
	if u.err != nil {
		r.failures++
		r.logger.Debug().Err(u.err).Int("consecutive", r.failures).Msg("Poll failed")
		if r.failures == r.maxFailures {
			// Degrade rather than keep publishing stale data
			r.publish(AttributeState{Power: PowerUnknown, LastUpdated: time.Now()})
			if r.onOffline != nil {
				r.onOffline()
			}
		}
		return
	}

	r.failures = 0
	next := AttributeState{
		Power:       mapPowerCode(u.power),
		LastUpdated: time.Now(),
	}
	if next.Power == PowerOn {
		next.Input = mapInputCode(u.input)
		next.Sensors = u.sensors
	}
	r.publish(next)
}

// publish installs the new state and notifies, unless it matches the last
// published value.
func (r *Reconciler) publish(next AttributeState) {
	r.mu.Lock()
	if r.current.Equal(next) {
		r.mu.Unlock()
		return
	}
	r.current = next
	published := copyState(next)
	r.mu.Unlock()

	r.logger.Info().
		Str("power", string(published.Power)).
		Str("input", published.Input).
		Msg("Attributes changed")

	if r.onChange != nil {
		r.onChange(published)
	}
}

func copyState(s AttributeState) AttributeState {
	out := s
	if s.Sensors != nil {
		out.Sensors = make(map[string]string, len(s.Sensors))
		for k, v := range s.Sensors {
			out.Sensors[k] = v
		}
	}
	return out
}

// mapPowerCode translates a raw power answer to the published enum.
// Unknown codes (including the emergency state) map to unknown instead of
// failing.
func mapPowerCode(code string) PowerState {
	switch code {
	case protocol.PowerCodeStandby:
		return PowerStandby
	case protocol.PowerCodeOn:
		return PowerOn
	case protocol.PowerCodeCooling:
		return PowerCooling
	case protocol.PowerCodeWarming:
		return PowerWarming
	}
	return PowerUnknown
}

// mapInputCode translates a raw input answer to the published name.
func mapInputCode(code string) string {
	switch code {
	case protocol.InputCodeHDMI1:
		return "HDMI1"
	case protocol.InputCodeHDMI2:
		return "HDMI2"
	case "":
		return ""
	}
	return "UNKNOWN"
}
