package pool

import (
	"encoding/json"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/machine"
)

// SnapshotMaxAge is how long a persisted snapshot stays trustworthy. Machines
// drift on their own; after a long daemon outage the verification pass has to
// rediscover everything from scratch.
const SnapshotMaxAge = 15 * 60 // seconds

type snapshot struct {
	Machines map[string]machineRecord `json:"machines"`
	LastSave int64                    `json:"last_save"`
}

type machineRecord struct {
	State string `json:"state"`
	Timer *int64 `json:"timer"`
}

// Persist writes the pool's machine states to the state file. Persistence is
// best effort; a failed write costs at most one snapshot and is logged, not
// escalated.
func (p *Pool) Persist() {
	snap := snapshot{
		Machines: make(map[string]machineRecord, len(p.machines)),
		LastSave: now(),
	}
	for _, m := range p.machines {
		snap.Machines[m.Name()] = machineRecord{
			State: string(m.State()),
			Timer: m.Timer(),
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("Failed to encode state snapshot: %v", err)
		return
	}
	if err := os.WriteFile(p.stateFile, data, 0644); err != nil {
		log.Errorf("Failed to write state snapshot to %s: %v", p.stateFile, err)
		return
	}
	log.Debugf("Persisted %d machine states to %s", len(snap.Machines), p.stateFile)
}

// Load applies the last persisted snapshot to the populated pool. A missing,
// unreadable, or stale snapshot leaves every machine in its default Off
// state; the next verification pass corrects the picture either way.
func (p *Pool) Load() {
	data, err := os.ReadFile(p.stateFile)
	if err != nil {
		log.Warnf("No usable state snapshot at %s: %v", p.stateFile, err)
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Errorf("Failed to decode state snapshot %s: %v", p.stateFile, err)
		return
	}

	age := now() - snap.LastSave
	if age > SnapshotMaxAge {
		log.Warnf("Ignoring state snapshot %s; %ds old exceeds the %ds limit",
			p.stateFile, age, SnapshotMaxAge)
		return
	}

	restored := 0
	for name, record := range snap.Machines {
		m, ok := p.byName[name]
		if !ok {
			log.Debugf("Snapshot machine %s is not in the manifest; skipping", name)
			continue
		}
		state, ok := machine.StateByName(record.State)
		if !ok {
			log.Warnf("Snapshot holds unknown state %s for %s; skipping", record.State, name)
			continue
		}
		m.Restore(state, record.Timer)
		restored++
	}
	log.Infof("Restored %d machine states from %s", restored, p.stateFile)
}

// now is swappable in tests.
var now = func() int64 { return time.Now().Unix() }
