// Package pool owns the machine inventory and drives the periodic
// refresh -> decide -> persist -> cleanup cycle.
package pool

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/bmc"
	"PowerKeeper/internal/collector"
	"PowerKeeper/internal/machine"
)

// Engine is the decision policy plugged into the pool. Implementations
// return the machine names to power on and off for the current cycle.
type Engine interface {
	Name() string
	EvalTurnOn() []string
	EvalTurnOff() []string
}

// Pool holds the machines built from the manifest, the cycle-scoped pending
// job list, and the persistence and telemetry plumbing around them.
type Pool struct {
	machines []*machine.Machine
	byName   map[string]*machine.Machine
	jobs     []*machine.Job

	source collector.Source
	engine Engine

	auth             bmc.Credentials
	defaultInterface string
	stateFile        string
}

func New(source collector.Source, auth bmc.Credentials, defaultInterface, stateFile string) *Pool {
	return &Pool{
		byName:           make(map[string]*machine.Machine),
		source:           source,
		auth:             auth,
		defaultInterface: defaultInterface,
		stateFile:        stateFile,
	}
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(machines=%d)", len(p.machines))
}

func (p *Pool) Machines() []*machine.Machine { return p.machines }

// Machine looks a machine up by its unique name.
func (p *Pool) Machine(name string) (*machine.Machine, bool) {
	m, ok := p.byName[name]
	return m, ok
}

func (p *Pool) MachineNames() []string {
	names := make([]string, 0, len(p.machines))
	for _, m := range p.machines {
		names = append(names, m.Name())
	}
	return names
}

func (p *Pool) Jobs() []*machine.Job { return p.jobs }

func (p *Pool) Source() collector.Source { return p.source }

func (p *Pool) StateFile() string { return p.stateFile }

func (p *Pool) SetEngine(engine Engine) { p.engine = engine }

// AddMachine registers a machine in the inventory. Names are unique; a
// duplicate is a manifest error.
func (p *Pool) AddMachine(m *machine.Machine) error {
	if _, exists := p.byName[m.Name()]; exists {
		return fmt.Errorf("duplicate machine name in manifest: %s", m.Name())
	}
	log.Debugf("Add %s", m)
	p.machines = append(p.machines, m)
	p.byName[m.Name()] = m
	return nil
}

// Decide runs one full cycle with the configured engine. The only error this
// can return is the fatal "no engine configured"; everything inside a cycle
// is isolated per machine and logged instead.
func (p *Pool) Decide(ctx context.Context) error {
	if p.engine == nil {
		return fmt.Errorf("no decision engine configured")
	}

	p.Refresh(ctx)

	for _, name := range p.engine.EvalTurnOn() {
		if m, ok := p.byName[name]; ok {
			m.TurnOn()
		}
	}
	for _, name := range p.engine.EvalTurnOff() {
		if m, ok := p.byName[name]; ok {
			m.TurnOff()
		}
	}

	p.Persist()
	p.Cleanup()
	return nil
}

// Refresh opens the management sessions, feeds every machine the freshly
// observed demand signal, and pulls the pending job list. The job query is
// skipped when every machine is already On or Booting; no turn-on decision
// could come of it.
func (p *Pool) Refresh(ctx context.Context) {
	for _, m := range p.machines {
		if err := m.Interface().OpenSession(); err != nil {
			log.Errorf("Failed to open session to %s: %v", m.Interface().BMC(), err)
		}
	}

	demand, err := p.source.ActiveMachines(ctx, p.MachineNames())
	if err != nil {
		log.Errorf("Failed to query machine activity: %v", err)
		demand = map[string]bool{}
	}
	for _, m := range p.machines {
		m.Verify(demand[m.Name()])
	}

	if p.allPoweredOrBooting() {
		log.Debug("Skip job query; all machines are On")
		return
	}

	jobs, err := p.source.PendingJobs(ctx)
	if err != nil {
		log.Errorf("Failed to query pending jobs: %v", err)
		return
	}
	p.jobs = jobs
}

func (p *Pool) allPoweredOrBooting() bool {
	for _, m := range p.machines {
		if state := m.State(); state != machine.On && state != machine.Booting {
			return false
		}
	}
	return len(p.machines) > 0
}

// Cleanup releases the per-cycle resources: management sessions, pending
// jobs, and the tentative slot assignments made during evaluation.
func (p *Pool) Cleanup() {
	for _, m := range p.machines {
		if err := m.Interface().CloseSession(); err != nil {
			log.Warnf("Failed to close session to %s: %v", m.Interface().BMC(), err)
		}
	}
	p.jobs = nil
	for _, m := range p.machines {
		for _, slot := range m.Slots() {
			slot.Reset()
		}
	}
}

// Reload rebuilds the inventory from a new manifest and reapplies the last
// snapshot.
func (p *Pool) Reload(manifestFile string) error {
	log.Info("Reload machine inventory")
	if err := p.Populate(manifestFile); err != nil {
		return err
	}
	p.Load()
	return nil
}
