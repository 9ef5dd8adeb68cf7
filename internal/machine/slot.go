package machine

import (
	"fmt"

	"PowerKeeper/internal/metrics"
)

// Resource attribute names shared between slot capacity records and manifest
// slot ads. The live values double as the TARGET scope for match predicates,
// so partitionable assignment updates them in place.
var resourceAttrs = []string{"Cpus", "Memory", "Disk", "GPUs"}

// Slot is one schedulable resource container of a machine. A partitionable
// slot accepts multiple jobs and carves its capacity down with each
// assignment; a static slot holds at most one job.
type Slot struct {
	machine       string
	name          string
	partitionable bool
	totals        map[string]float64
	attrs         map[string]any
	jobs          []*Job
}

// NewSlot builds a slot from a manifest ad. The attribute set carries the
// nominal Total* resource values plus arbitrary match attributes; live
// resource values are derived from the totals on construction.
func NewSlot(machineName, name string, partitionable bool, totals map[string]float64, attrs map[string]any) *Slot {
	s := &Slot{
		machine:       machineName,
		name:          name,
		partitionable: partitionable,
		totals:        totals,
		attrs:         attrs,
	}
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.Reset()
	return s
}

func (s *Slot) String() string {
	return fmt.Sprintf("Slot(name=%s, machine=%s, partitionable=%t)", s.name, s.machine, s.partitionable)
}

// Machine is the name of the owning machine, fixed at construction.
func (s *Slot) Machine() string { return s.machine }

func (s *Slot) Name() string { return s.name }

func (s *Slot) Partitionable() bool { return s.partitionable }

func (s *Slot) Jobs() []*Job { return s.jobs }

// Attrs is the live attribute set used as the TARGET scope in match
// predicates.
func (s *Slot) Attrs() map[string]any { return s.attrs }

// Cpus returns the live CPU capacity, zero when the slot carries no CPU
// attribute at all.
func (s *Slot) Cpus() float64 {
	if v, ok := s.attrs["Cpus"].(float64); ok {
		return v
	}
	return 0
}

// AssignJob tentatively places a job on this slot. A static slot that already
// holds a job refuses regardless of the predicate; a predicate mismatch
// refuses without mutation. On a partitionable match the requested quantities
// are subtracted from the live capacity. Capacity is deliberately not clamped
// at zero: oversubtraction stays visible in the bookkeeping.
func (s *Slot) AssignJob(job *Job) bool {
	if !s.partitionable && len(s.jobs) > 0 {
		return false
	}

	matches := job.Requirements == nil || job.Requirements.Matches(s.attrs, job.Attrs())
	if !matches {
		return false
	}

	if s.partitionable {
		s.subtract("Cpus", job.RequestCpus)
		s.subtract("Memory", job.RequestMemory)
		s.subtract("Disk", job.RequestDisk)
		s.subtract("GPUs", job.RequestGpus)
	}
	s.jobs = append(s.jobs, job)
	metrics.JobAssignments.Inc()
	return true
}

func (s *Slot) subtract(attr string, x float64) {
	if v, ok := s.attrs[attr].(float64); ok {
		s.attrs[attr] = v - x
	}
}

// Reset restores live capacity to the nominal totals and clears assignments.
// Called once per cycle from pool cleanup, never mid-evaluation.
func (s *Slot) Reset() {
	s.jobs = nil
	for _, attr := range resourceAttrs {
		if total, ok := s.totals[attr]; ok {
			s.attrs[attr] = total
		}
	}
}
