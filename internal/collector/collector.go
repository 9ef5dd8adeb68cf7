// Package collector reads the cluster scheduler's view of the world: pending
// job requests, node liveness, and slot activity. It is the source of the
// demand signal that drives power decisions.
package collector

import (
	"context"

	"PowerKeeper/internal/machine"
)

// Source answers the per-cycle questions the pool and decision engine ask.
// Implementations must treat every call as a fresh observation; nothing is
// cached across cycles.
type Source interface {
	// PendingJobs returns the resource requests currently waiting in the
	// queue.
	PendingJobs(ctx context.Context) ([]*machine.Job, error)

	// ActiveMachines reports which of the named machines the scheduler
	// currently sees alive (the demand signal fed into state verification).
	ActiveMachines(ctx context.Context, names []string) (map[string]bool, error)

	// ClaimedMachines reports which of the named machines have at least one
	// slot in active use.
	ClaimedMachines(ctx context.Context, names []string) (map[string]bool, error)

	// IdleLongerThan reports which of the named machines the scheduler has
	// seen idle for at least idleSeconds.
	IdleLongerThan(ctx context.Context, names []string, idleSeconds int64) (map[string]bool, error)
}
