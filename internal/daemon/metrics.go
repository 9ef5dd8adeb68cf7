package daemon

import (
	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/metrics"
	"PowerKeeper/internal/pool"
)

// updateMachineMetrics republishes the per-state machine counts after each
// cycle. Every known state is set explicitly so emptied states drop to zero
// instead of going stale.
func updateMachineMetrics(p *pool.Pool) {
	counts := make(map[string]float64)
	for _, m := range p.Machines() {
		counts[string(m.State())]++
	}
	for _, name := range machine.StateNames() {
		metrics.Machines.WithLabelValues(name).Set(counts[name])
	}
}
