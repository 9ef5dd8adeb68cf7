package pool

import (
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"PowerKeeper/internal/bmc"
	"PowerKeeper/internal/machine"
)

// Manifest attribute names holding the nominal slot capacities. They map onto
// the live resource attributes carved down during assignment.
var totalAttrs = map[string]string{
	"TotalSlotCpus":   "Cpus",
	"TotalSlotMemory": "Memory",
	"TotalSlotDisk":   "Disk",
	"TotalSlotGPUs":   "GPUs",
}

// Populate rebuilds the machine inventory from the manifest file. The
// manifest is a JSON document with a management_interfaces object keyed by
// machine name and a slots array of slot ads. Any inconsistency is a
// configuration error and aborts the whole load; a half-populated pool is
// never installed.
func (p *Pool) Populate(manifestFile string) error {
	data, err := os.ReadFile(manifestFile)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %v", manifestFile, err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("manifest %s is not valid JSON", manifestFile)
	}

	slots := gjson.GetBytes(data, "slots")
	if !slots.IsArray() {
		return fmt.Errorf("manifest %s has no slots array", manifestFile)
	}
	interfaces := gjson.GetBytes(data, "management_interfaces")

	machines := make(map[string]*machine.Machine)
	var order []string
	var loadErr error

	slots.ForEach(func(_, ad gjson.Result) bool {
		machineName := ad.Get("machine").String()
		slotName := ad.Get("name").String()
		if machineName == "" || slotName == "" {
			loadErr = fmt.Errorf("slot ad is missing machine or name: %s", ad.Raw)
			return false
		}

		m, ok := machines[machineName]
		if !ok {
			m, loadErr = p.newMachine(machineName, interfaces.Get(escapeKey(machineName)))
			if loadErr != nil {
				return false
			}
			machines[machineName] = m
			order = append(order, machineName)
		}

		slot := machine.NewSlot(machineName, slotName,
			ad.Get("slot_type").String() == "Partitionable",
			slotTotals(ad), slotAttrs(ad))
		if loadErr = m.AddSlot(slot); loadErr != nil {
			return false
		}
		return true
	})
	if loadErr != nil {
		return loadErr
	}
	if len(order) == 0 {
		return fmt.Errorf("manifest %s declares no machines", manifestFile)
	}

	sort.Strings(order)
	p.machines = nil
	p.byName = make(map[string]*machine.Machine, len(order))
	for _, name := range order {
		if err := p.AddMachine(machines[name]); err != nil {
			return err
		}
	}
	log.Infof("Populated pool with %d machines from %s", len(p.machines), manifestFile)
	return nil
}

// newMachine builds a machine with its management interface. The interface
// record is optional; absent fields fall back to the pool-level defaults.
func (p *Pool) newMachine(name string, record gjson.Result) (*machine.Machine, error) {
	ifaceName := p.defaultInterface
	auth := p.auth
	if record.Exists() {
		if v := record.Get("interface"); v.Exists() {
			ifaceName = v.String()
		}
		if v := record.Get("user"); v.Exists() {
			auth.User = v.String()
		}
		if v := record.Get("password"); v.Exists() {
			auth.Password = v.String()
		}
	}

	iface, err := bmc.New(ifaceName, name, auth)
	if err != nil {
		return nil, fmt.Errorf("machine %s: %v", name, err)
	}
	return machine.NewMachine(name, iface), nil
}

func slotTotals(ad gjson.Result) map[string]float64 {
	totals := make(map[string]float64)
	for manifestAttr, resourceAttr := range totalAttrs {
		if v := ad.Get(manifestAttr); v.Exists() {
			totals[resourceAttr] = v.Float()
		}
	}
	return totals
}

func slotAttrs(ad gjson.Result) map[string]any {
	attrs := make(map[string]any)
	ad.Get("attributes").ForEach(func(key, value gjson.Result) bool {
		attrs[key.String()] = value.Value()
		return true
	})
	return attrs
}

// escapeKey protects the dots in a machine's FQDN from being read as a gjson
// path separator.
func escapeKey(name string) string {
	escaped := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '.' || name[i] == '*' || name[i] == '?' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, name[i])
	}
	return string(escaped)
}
