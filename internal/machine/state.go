package machine

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type StateName string

const (
	Off          StateName = "Off"
	Booting      StateName = "Booting"
	On           StateName = "On"
	ShuttingDown StateName = "ShuttingDown"
	Unavailable  StateName = "Unavailable"
	Stuck        StateName = "Stuck"
	Maintenance  StateName = "Maintenance"
)

// TransitionTimeout bounds how long a machine may sit in Booting or
// ShuttingDown before it is declared Stuck.
const TransitionTimeout = 900 // seconds

// State carries the behavior of one power-lifecycle state. Implementations
// are stateless singletons; the owning machine is always passed explicitly.
// Returned errors signal failed management-channel exchanges and are turned
// into an Unavailable transition by the Machine wrapper, never propagated.
type State interface {
	Name() StateName
	TurnOn(m *Machine) error
	TurnOff(m *Machine) error
	Verify(m *Machine, demand bool) error
}

// states is the static variant registry. State lookup by name (snapshot load,
// forced transitions) goes through here; nothing is discovered at runtime.
var states = map[StateName]State{
	Off:          offState{},
	Booting:      bootingState{},
	On:           onState{},
	ShuttingDown: shuttingDownState{},
	Unavailable:  unavailableState{},
	Stuck:        stuckState{},
	Maintenance:  maintenanceState{},
}

// StateByName resolves a state variant case-insensitively, as operators type
// names free-form on the command channel.
func StateByName(name string) (State, bool) {
	for stateName, state := range states {
		if strings.EqualFold(string(stateName), name) {
			return state, true
		}
	}
	return nil, false
}

func StateNames() []string {
	return []string{
		string(Off), string(Booting), string(On), string(ShuttingDown),
		string(Unavailable), string(Stuck), string(Maintenance),
	}
}

type offState struct{}

func (offState) Name() StateName { return Off }

func (offState) TurnOn(m *Machine) error {
	if err := m.iface.SetPower(powerOnCmd); err != nil {
		return err
	}
	m.setTimerNow()
	m.transitionTo(states[Booting])
	return nil
}

func (offState) TurnOff(m *Machine) error {
	log.Debugf("Cannot turn off %s as it is currently in Off", m.name)
	return nil
}

func (offState) Verify(m *Machine, demand bool) error {
	power, err := m.iface.Power()
	if err != nil {
		return err
	}
	log.Debugf("Verify Off for %s: demand=%t, power=%t", m.name, demand, power)

	switch {
	case power && demand:
		m.transitionTo(states[On])
	case !power && demand:
		m.transitionTo(states[Stuck])
	case power && !demand:
		// Machine state unclear (likely either Booting or ShuttingDown)
	}
	return nil
}

type onState struct{}

func (onState) Name() StateName { return On }

func (onState) TurnOn(m *Machine) error {
	log.Debugf("Cannot turn on %s as it is currently in On", m.name)
	return nil
}

func (onState) TurnOff(m *Machine) error {
	if err := m.iface.SetPower(powerSoftOffCmd); err != nil {
		return err
	}
	m.setTimerNow()
	m.transitionTo(states[ShuttingDown])
	return nil
}

func (onState) Verify(m *Machine, demand bool) error {
	power, err := m.iface.Power()
	if err != nil {
		return err
	}
	log.Debugf("Verify On for %s: demand=%t, power=%t", m.name, demand, power)

	switch {
	case !power && !demand:
		m.transitionTo(states[Off])
	case power && !demand:
		m.transitionTo(states[Stuck])
	case !power && demand:
		// Machine state unclear (likely either Booting or ShuttingDown)
	}
	return nil
}

type bootingState struct{}

func (bootingState) Name() StateName { return Booting }

func (bootingState) TurnOn(m *Machine) error {
	log.Debugf("Cannot turn on %s as it is currently in Booting", m.name)
	return nil
}

func (bootingState) TurnOff(m *Machine) error {
	log.Debugf("Cannot turn off %s as it is currently in Booting", m.name)
	return nil
}

func (bootingState) Verify(m *Machine, demand bool) error {
	if demand {
		m.SetTimer(nil)
		m.transitionTo(states[On])
		return nil
	}

	seconds := m.timerElapsed()
	if seconds >= TransitionTimeout {
		log.Debugf("Transition to On period exceeded (%ds) for %s", TransitionTimeout, m.name)
		m.transitionTo(states[Stuck])
	} else {
		log.Debugf("%s has been transitioning to On for %ds", m.name, seconds)
	}
	return nil
}

type shuttingDownState struct{}

func (shuttingDownState) Name() StateName { return ShuttingDown }

func (shuttingDownState) TurnOn(m *Machine) error {
	log.Debugf("Cannot turn on %s as it is currently in ShuttingDown", m.name)
	return nil
}

func (shuttingDownState) TurnOff(m *Machine) error {
	log.Debugf("Cannot turn off %s as it is currently in ShuttingDown", m.name)
	return nil
}

func (shuttingDownState) Verify(m *Machine, demand bool) error {
	power, err := m.iface.Power()
	if err != nil {
		return err
	}

	if power {
		seconds := m.timerElapsed()
		if seconds >= TransitionTimeout {
			log.Debugf("Transition to Off period exceeded (%ds) for %s", TransitionTimeout, m.name)
			m.transitionTo(states[Stuck])
		} else {
			log.Debugf("%s has been transitioning to Off for %ds", m.name, seconds)
		}
		return nil
	}

	m.SetTimer(nil)
	m.transitionTo(states[Off])
	return nil
}

// Something has gone wrong with the machine's management channel. Verified
// every cycle and transitioned back to a regular state once communication is
// re-established.
type unavailableState struct{}

func (unavailableState) Name() StateName { return Unavailable }

func (unavailableState) TurnOn(m *Machine) error { return nil }

func (unavailableState) TurnOff(m *Machine) error { return nil }

func (unavailableState) Verify(m *Machine, demand bool) error {
	power, err := m.iface.Power()
	if err != nil {
		return err
	}
	log.Debugf("Verify Unavailable for %s: demand=%t, power=%t", m.name, demand, power)

	switch {
	case power && demand:
		m.transitionTo(states[On])
	case !power && demand:
		m.transitionTo(states[Stuck])
	case power && !demand:
		// Machine state unclear (likely either Booting or ShuttingDown)
	case !power && !demand:
		m.transitionTo(states[Off])
	}
	return nil
}

// Terminal until an operator intervenes through the command channel.
type stuckState struct{}

func (stuckState) Name() StateName { return Stuck }

func (stuckState) TurnOn(m *Machine) error { return nil }

func (stuckState) TurnOff(m *Machine) error { return nil }

func (stuckState) Verify(m *Machine, demand bool) error { return nil }

// The machine is excluded from automation while an operator works on it.
type maintenanceState struct{}

func (maintenanceState) Name() StateName { return Maintenance }

func (maintenanceState) TurnOn(m *Machine) error {
	log.Debugf("Ignore turn on %s because state is Maintenance", m.name)
	return nil
}

func (maintenanceState) TurnOff(m *Machine) error {
	log.Debugf("Ignore turn off %s because state is Maintenance", m.name)
	return nil
}

func (maintenanceState) Verify(m *Machine, demand bool) error { return nil }

func (s StateName) String() string { return string(s) }

// now is swappable in tests.
var now = func() int64 { return time.Now().Unix() }
