package machine

import (
	"PowerKeeper/internal/predicate"
)

// Job is a pending resource request read fresh from the job queue each cycle.
// It only lives for one decision-engine evaluation and is never persisted.
type Job struct {
	ID            string
	RequestCpus   float64
	RequestMemory float64
	RequestDisk   float64
	RequestGpus   float64
	Requirements  *predicate.Predicate
}

// Attrs is the job-side evaluation context for match predicates.
func (j *Job) Attrs() map[string]any {
	return map[string]any{
		"GlobalJobId":   j.ID,
		"RequestCpus":   j.RequestCpus,
		"RequestMemory": j.RequestMemory,
		"RequestDisk":   j.RequestDisk,
		"RequestGpus":   j.RequestGpus,
	}
}
