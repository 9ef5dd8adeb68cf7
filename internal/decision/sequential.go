package decision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/pool"
	"PowerKeeper/internal/predicate"
)

const queryTimeout = 30 * time.Second

// Sequential walks the pending job queue in order and greedily packs each job
// onto the first machine that can take it, preferring machines that are
// already booting over powering on new ones. Deterministic: equal inputs
// produce the same decision in the same order.
type Sequential struct {
	pool        *pool.Pool
	idleSeconds int64
}

func NewSequential(p *pool.Pool, idleSeconds int64) pool.Engine {
	return &Sequential{pool: p, idleSeconds: idleSeconds}
}

func (e *Sequential) Name() string { return "Sequential" }

// EvalTurnOn packs the pending jobs onto powered-down capacity and returns
// the machines that collected at least one job. A job that fits nowhere is
// counted and skipped; one refused request must not wedge the queue.
func (e *Sequential) EvalTurnOn() []string {
	jobs := e.pool.Jobs()
	if len(jobs) == 0 {
		return nil
	}

	candidates := e.turnOnCandidates()
	if len(candidates) == 0 {
		log.Debug("No machines available to power on")
		return nil
	}

	var result []string
	seen := make(map[string]bool)
	unplaced := 0
	for _, job := range jobs {
		name := placeJob(job, candidates)
		if name == "" {
			log.Debugf("No machine can serve job %s", job.ID)
			unplaced++
			continue
		}
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	if unplaced > 0 {
		log.Infof("Could not place %d of %d pending jobs", unplaced, len(jobs))
	}
	return result
}

// turnOnCandidates orders the packable machines: Booting first, then Off,
// each group sorted by name.
func (e *Sequential) turnOnCandidates() []*machine.Machine {
	var booting, off []*machine.Machine
	for _, m := range e.pool.Machines() {
		switch m.State() {
		case machine.Booting:
			booting = append(booting, m)
		case machine.Off:
			off = append(off, m)
		}
	}
	byName := func(ms []*machine.Machine) {
		sort.Slice(ms, func(i, j int) bool { return ms[i].Name() < ms[j].Name() })
	}
	byName(booting)
	byName(off)
	return append(booting, off...)
}

// placeJob assigns a job to the first slot with CPU capacity left that its
// requirements match, returning the owning machine's name.
func placeJob(job *machine.Job, candidates []*machine.Machine) string {
	job = withCpuRequirement(job)
	for _, m := range candidates {
		for _, slot := range m.Slots() {
			if slot.Cpus() <= 0 {
				continue
			}
			if slot.AssignJob(job) {
				log.Debugf("Assigned job %s to %s", job.ID, slot)
				return m.Name()
			}
		}
	}
	return ""
}

// withCpuRequirement injects a one-CPU floor into a single-CPU job whose
// requirements never mention RequestCpus. Schedulers add this constraint
// implicitly at match time; without it here a zero-CPU slot would absorb
// every job. Jobs asking for more than one CPU are left untouched: the
// allocator oversubscribes them onto any slot with CPU capacity left.
func withCpuRequirement(job *machine.Job) *machine.Job {
	if job.RequestCpus > 1 {
		return job
	}
	src := ""
	if job.Requirements != nil {
		src = job.Requirements.String()
	}
	if strings.Contains(src, "RequestCpus") {
		return job
	}

	clause := "TARGET.Cpus >= 1"
	if src != "" {
		clause = fmt.Sprintf("(%s) && (%s)", src, clause)
	}

	req, err := predicate.Parse(clause)
	if err != nil {
		log.Warnf("Failed to augment requirements for job %s: %v", job.ID, err)
		return job
	}
	aug := *job
	aug.Requirements = req
	return &aug
}

// EvalTurnOff returns the powered machines whose slots have gone unclaimed
// past the idle threshold. A claimed machine has its last-active mark pushed
// forward instead.
func (e *Sequential) EvalTurnOff() []string {
	var powered []*machine.Machine
	for _, m := range e.pool.Machines() {
		if m.State() == machine.On {
			powered = append(powered, m)
		}
	}
	if len(powered) == 0 {
		return nil
	}
	names := make([]string, 0, len(powered))
	for _, m := range powered {
		names = append(names, m.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	claimed, err := e.pool.Source().ClaimedMachines(ctx, names)
	if err != nil {
		log.Errorf("Failed to query claimed machines: %v", err)
		return nil
	}
	idle, err := e.pool.Source().IdleLongerThan(ctx, names, e.idleSeconds)
	if err != nil {
		log.Errorf("Failed to query idle machines: %v", err)
		return nil
	}

	var result []string
	for _, m := range powered {
		if claimed[m.Name()] {
			m.SetLastActive(now())
			continue
		}
		seconds := now() - m.LastActive()
		if seconds >= e.idleSeconds && idle[m.Name()] {
			log.Debugf("%s has been idle for %ds", m.Name(), seconds)
			result = append(result, m.Name())
		}
	}
	return result
}
