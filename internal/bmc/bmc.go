// Package bmc talks to the out-of-band management controllers that power
// machines on and off independently of their operating system.
package bmc

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInterface marks a failed exchange with a management controller. Callers
// at the state-machine boundary translate it into the Unavailable state
// instead of letting it escape the decision cycle.
var ErrInterface = errors.New("management interface communication failed")

type PowerCommand int

const (
	PowerOn PowerCommand = iota
	PowerSoftOff
)

func (c PowerCommand) String() string {
	if c == PowerOn {
		return "on"
	}
	return "soft-off"
}

type Credentials struct {
	User     string
	Password string
}

// Interface is one machine's management channel. Sessions are opened at the
// start of a cycle and closed during cleanup; they can expire in between
// cycles, so no state is trusted across that boundary.
type Interface interface {
	BMC() string
	OpenSession() error
	CloseSession() error
	Power() (bool, error)
	SetPower(cmd PowerCommand) error
}

type Factory func(hostname string, auth Credentials) Interface

// Interface types are registered in a static table, not discovered. Adding a
// controller type means adding a line here.
var registry = map[string]Factory{
	"IPMI":    NewIPMI,
	"Redfish": NewRedfish,
}

// New builds the named management interface for a machine. Unknown names are
// a configuration error and fatal to startup or reload.
func New(name, hostname string, auth Credentials) (Interface, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized management interface: %s (known: %v)", name, Known())
	}
	if auth.User == "" || auth.Password == "" {
		return nil, fmt.Errorf("no session credentials set for %s", hostname)
	}
	return factory(hostname, auth), nil
}

func Known() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
