package machine

import (
	"testing"

	"PowerKeeper/internal/bmc"
)

// fakeInterface is an in-memory management channel. When fail is set every
// exchange errors, mimicking an unreachable controller.
type fakeInterface struct {
	power    bool
	fail     bool
	commands []bmc.PowerCommand
}

func (f *fakeInterface) BMC() string        { return "cpu1.oob.example.org" }
func (f *fakeInterface) OpenSession() error { return nil }
func (f *fakeInterface) CloseSession() error {
	return nil
}

func (f *fakeInterface) Power() (bool, error) {
	if f.fail {
		return false, bmc.ErrInterface
	}
	return f.power, nil
}

func (f *fakeInterface) SetPower(cmd bmc.PowerCommand) error {
	if f.fail {
		return bmc.ErrInterface
	}
	f.commands = append(f.commands, cmd)
	return nil
}

const testEpoch = int64(1700000000)

func fixNow(t *testing.T, epoch int64) {
	t.Helper()
	orig := now
	now = func() int64 { return epoch }
	t.Cleanup(func() { now = orig })
}

func newTestMachine(t *testing.T, state StateName, iface bmc.Interface, timerAgo int64) *Machine {
	t.Helper()
	m := NewMachine("cpu1.example.org", iface)
	s, ok := StateByName(string(state))
	if !ok {
		t.Fatalf("unknown state %s", state)
	}
	var timer *int64
	if timerAgo >= 0 {
		v := testEpoch - timerAgo
		timer = &v
	}
	m.Restore(s, timer)
	return m
}

func TestVerifyTransitions(t *testing.T) {
	fixNow(t, testEpoch)

	tests := []struct {
		name      string
		state     StateName
		demand    bool
		power     bool
		timerAgo  int64 // -1 leaves the transition timer unset
		want      StateName
		wantTimer bool
	}{
		{name: "off with power and demand recovers to on", state: Off, demand: true, power: true, timerAgo: -1, want: On},
		{name: "off with demand but no power is stuck", state: Off, demand: true, power: false, timerAgo: -1, want: Stuck},
		{name: "off with power but no demand stays put", state: Off, demand: false, power: true, timerAgo: -1, want: Off},
		{name: "off with neither stays off", state: Off, demand: false, power: false, timerAgo: -1, want: Off},

		{name: "on without power or demand falls back to off", state: On, demand: false, power: false, timerAgo: -1, want: Off},
		{name: "on with power but no demand is stuck", state: On, demand: false, power: true, timerAgo: -1, want: Stuck},
		{name: "on with demand but no power stays put", state: On, demand: true, power: false, timerAgo: -1, want: On},
		{name: "on with power and demand stays on", state: On, demand: true, power: true, timerAgo: -1, want: On},

		{name: "booting with demand completes", state: Booting, demand: true, power: true, timerAgo: 10, want: On},
		{name: "booting below the timeout keeps waiting", state: Booting, demand: false, power: true, timerAgo: TransitionTimeout - 1, want: Booting, wantTimer: true},
		{name: "booting at the timeout is stuck", state: Booting, demand: false, power: true, timerAgo: TransitionTimeout, want: Stuck, wantTimer: true},

		{name: "shutting down completes once power drops", state: ShuttingDown, demand: false, power: false, timerAgo: 10, want: Off},
		{name: "shutting down below the timeout keeps waiting", state: ShuttingDown, demand: false, power: true, timerAgo: TransitionTimeout - 1, want: ShuttingDown, wantTimer: true},
		{name: "shutting down at the timeout is stuck", state: ShuttingDown, demand: false, power: true, timerAgo: TransitionTimeout, want: Stuck, wantTimer: true},

		{name: "unavailable with power and demand recovers to on", state: Unavailable, demand: true, power: true, timerAgo: -1, want: On},
		{name: "unavailable with demand but no power is stuck", state: Unavailable, demand: true, power: false, timerAgo: -1, want: Stuck},
		{name: "unavailable with power but no demand stays put", state: Unavailable, demand: false, power: true, timerAgo: -1, want: Unavailable},
		{name: "unavailable with neither recovers to off", state: Unavailable, demand: false, power: false, timerAgo: -1, want: Off},

		{name: "stuck ignores verification", state: Stuck, demand: true, power: true, timerAgo: -1, want: Stuck},
		{name: "maintenance ignores verification", state: Maintenance, demand: true, power: true, timerAgo: -1, want: Maintenance},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			iface := &fakeInterface{power: tt.power}
			m := newTestMachine(t, tt.state, iface, tt.timerAgo)

			m.Verify(tt.demand)

			if m.State() != tt.want {
				t.Fatalf("state = %s, want %s", m.State(), tt.want)
			}
			if (m.Timer() != nil) != tt.wantTimer {
				t.Fatalf("timer set = %t, want %t", m.Timer() != nil, tt.wantTimer)
			}
		})
	}
}

func TestVerifyCommunicationFailureIsolatesMachine(t *testing.T) {
	fixNow(t, testEpoch)

	for _, state := range []StateName{Off, On, ShuttingDown, Unavailable} {
		state := state
		t.Run(string(state), func(t *testing.T) {
			m := newTestMachine(t, state, &fakeInterface{fail: true}, -1)

			m.Verify(false)

			if m.State() != Unavailable {
				t.Fatalf("state = %s, want %s", m.State(), Unavailable)
			}
		})
	}
}

func TestVerifyInertStatesNeverTouchTheInterface(t *testing.T) {
	fixNow(t, testEpoch)

	// A failing interface would force Unavailable on any power query; staying
	// put proves none was made.
	for _, state := range []StateName{Stuck, Maintenance} {
		state := state
		t.Run(string(state), func(t *testing.T) {
			m := newTestMachine(t, state, &fakeInterface{fail: true}, -1)

			m.Verify(true)

			if m.State() != state {
				t.Fatalf("state = %s, want %s", m.State(), state)
			}
		})
	}
}

func TestTurnOn(t *testing.T) {
	fixNow(t, testEpoch)

	t.Run("off powers up and starts booting", func(t *testing.T) {
		iface := &fakeInterface{}
		m := newTestMachine(t, Off, iface, -1)

		m.TurnOn()

		if m.State() != Booting {
			t.Fatalf("state = %s, want %s", m.State(), Booting)
		}
		if m.Timer() == nil || *m.Timer() != testEpoch {
			t.Fatalf("timer = %v, want %d", m.Timer(), testEpoch)
		}
		if m.LastActive() != testEpoch {
			t.Fatalf("lastActive = %d, want %d", m.LastActive(), testEpoch)
		}
		if len(iface.commands) != 1 || iface.commands[0] != bmc.PowerOn {
			t.Fatalf("commands = %v, want [PowerOn]", iface.commands)
		}
	})

	t.Run("failed power command isolates the machine", func(t *testing.T) {
		m := newTestMachine(t, Off, &fakeInterface{fail: true}, -1)

		m.TurnOn()

		if m.State() != Unavailable {
			t.Fatalf("state = %s, want %s", m.State(), Unavailable)
		}
	})

	for _, state := range []StateName{On, Booting, ShuttingDown, Maintenance} {
		state := state
		t.Run(string(state)+" is a no-op", func(t *testing.T) {
			iface := &fakeInterface{}
			m := newTestMachine(t, state, iface, -1)

			m.TurnOn()

			if m.State() != state {
				t.Fatalf("state = %s, want %s", m.State(), state)
			}
			if len(iface.commands) != 0 {
				t.Fatalf("commands = %v, want none", iface.commands)
			}
		})
	}
}

func TestTurnOff(t *testing.T) {
	fixNow(t, testEpoch)

	t.Run("on powers down and starts shutting down", func(t *testing.T) {
		iface := &fakeInterface{power: true}
		m := newTestMachine(t, On, iface, -1)

		m.TurnOff()

		if m.State() != ShuttingDown {
			t.Fatalf("state = %s, want %s", m.State(), ShuttingDown)
		}
		if m.Timer() == nil || *m.Timer() != testEpoch {
			t.Fatalf("timer = %v, want %d", m.Timer(), testEpoch)
		}
		if len(iface.commands) != 1 || iface.commands[0] != bmc.PowerSoftOff {
			t.Fatalf("commands = %v, want [PowerSoftOff]", iface.commands)
		}
	})

	t.Run("failed power command isolates the machine", func(t *testing.T) {
		m := newTestMachine(t, On, &fakeInterface{fail: true}, -1)

		m.TurnOff()

		if m.State() != Unavailable {
			t.Fatalf("state = %s, want %s", m.State(), Unavailable)
		}
	})

	for _, state := range []StateName{Off, Booting, ShuttingDown, Maintenance} {
		state := state
		t.Run(string(state)+" is a no-op", func(t *testing.T) {
			iface := &fakeInterface{}
			m := newTestMachine(t, state, iface, -1)

			m.TurnOff()

			if m.State() != state {
				t.Fatalf("state = %s, want %s", m.State(), state)
			}
			if len(iface.commands) != 0 {
				t.Fatalf("commands = %v, want none", iface.commands)
			}
		})
	}
}

func TestForceStateLeavesTimerUntouched(t *testing.T) {
	fixNow(t, testEpoch)

	m := newTestMachine(t, Booting, &fakeInterface{}, 100)
	state, _ := StateByName("Maintenance")

	m.ForceState(state)

	if m.State() != Maintenance {
		t.Fatalf("state = %s, want %s", m.State(), Maintenance)
	}
	if m.Timer() == nil || *m.Timer() != testEpoch-100 {
		t.Fatalf("timer = %v, want %d", m.Timer(), testEpoch-100)
	}
}

func TestStateByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  StateName
		ok    bool
	}{
		{name: "exact name", input: "Off", want: Off, ok: true},
		{name: "lower case", input: "maintenance", want: Maintenance, ok: true},
		{name: "mixed case", input: "shuttingdown", want: ShuttingDown, ok: true},
		{name: "unknown", input: "Hibernating", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state, ok := StateByName(tt.input)
			if ok != tt.ok {
				t.Fatalf("StateByName(%q) ok = %t, want %t", tt.input, ok, tt.ok)
			}
			if ok && state.Name() != tt.want {
				t.Fatalf("StateByName(%q) = %s, want %s", tt.input, state.Name(), tt.want)
			}
		})
	}
}
