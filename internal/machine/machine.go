// Package machine holds the per-machine power lifecycle: the state variants,
// the machine that owns exactly one live state, and the resource slots that
// demand is packed onto.
package machine

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/bmc"
)

const (
	powerOnCmd      = bmc.PowerOn
	powerSoftOffCmd = bmc.PowerSoftOff
)

// Machine pairs a compute node with its management channel and current power
// state. It owns exactly one State at a time; transitions replace the value
// outright.
type Machine struct {
	name       string
	state      State
	timer      *int64
	lastActive int64
	slots      []*Slot
	iface      bmc.Interface
}

// NewMachine builds a machine in the default Off state.
func NewMachine(name string, iface bmc.Interface) *Machine {
	return &Machine{
		name:       name,
		state:      states[Off],
		lastActive: now(),
		iface:      iface,
	}
}

func (m *Machine) String() string {
	return fmt.Sprintf("Machine(name=%s, n_slots=%d, state=%s)", m.name, len(m.slots), m.state.Name())
}

func (m *Machine) Name() string { return m.name }

func (m *Machine) State() StateName { return m.state.Name() }

// Timer is the epoch second the current state was entered, nil outside of
// timeout-bounded states.
func (m *Machine) Timer() *int64 { return m.timer }

func (m *Machine) SetTimer(value *int64) {
	if value == nil {
		log.Debugf("Clear %s transition timer", m.name)
	} else {
		log.Debugf("Set %s transition timer to %d", m.name, *value)
	}
	m.timer = value
}

// LastActive is the epoch second the machine was last seen doing work, the
// idleness heuristic for turn-off decisions.
func (m *Machine) LastActive() int64 { return m.lastActive }

func (m *Machine) SetLastActive(value int64) {
	log.Debugf("Set %s last-active timer to %d", m.name, value)
	m.lastActive = value
}

func (m *Machine) Slots() []*Slot { return m.slots }

// AddSlot attaches a slot during inventory population. The slot's machine
// name must agree with this machine.
func (m *Machine) AddSlot(slot *Slot) error {
	if slot.Machine() != m.name {
		return fmt.Errorf("slot (%s) to machine (%s) mismatch", slot.Machine(), m.name)
	}
	m.slots = append(m.slots, slot)
	return nil
}

func (m *Machine) Interface() bmc.Interface { return m.iface }

// ForceState applies an operator-requested state directly, bypassing the
// decision engine. The transition timer is left untouched.
func (m *Machine) ForceState(state State) {
	m.transitionTo(state)
}

// Restore reinstates a state and timer from a snapshot during startup or
// reload.
func (m *Machine) Restore(state State, timer *int64) {
	m.transitionTo(state)
	m.timer = timer
}

// TurnOn delegates to the current state. Powering on marks the machine
// active so a fresh boot is not immediately shut down as idle.
func (m *Machine) TurnOn() {
	m.lastActive = now()
	m.isolate(m.state.TurnOn(m))
}

func (m *Machine) TurnOff() {
	m.isolate(m.state.TurnOff(m))
}

// Verify reconciles the tracked state against the freshly observed power
// reading and demand signal.
func (m *Machine) Verify(demand bool) {
	m.isolate(m.state.Verify(m, demand))
}

// isolate is the single fault-isolation point for management-channel
// failures: the machine becomes Unavailable and the cycle carries on. It is
// re-verified every cycle and recovers once communication is back.
func (m *Machine) isolate(err error) {
	if err == nil {
		return
	}
	log.Errorf("Communication to %s failed: %v", m.iface.BMC(), err)
	m.transitionTo(states[Unavailable])
}

func (m *Machine) transitionTo(state State) {
	log.Debugf("Transition %s to %s", m.name, state.Name())
	m.state = state
}

func (m *Machine) setTimerNow() {
	t := now()
	m.SetTimer(&t)
}

func (m *Machine) timerElapsed() int64 {
	if m.timer == nil {
		return 0
	}
	return now() - *m.timer
}
