package bmc

import (
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/metrics"
)

// IPMI drives a BMC over RMCP+ by shelling out to ipmitool. The BMC hostname
// is derived from the machine name by splicing an "oob" label after the host
// part, e.g. cpu1.example.org -> cpu1.oob.example.org.
type IPMI struct {
	hostname string
	auth     Credentials
}

func NewIPMI(hostname string, auth Credentials) Interface {
	return &IPMI{hostname: hostname, auth: auth}
}

func (i *IPMI) BMC() string {
	idx := strings.Index(i.hostname, ".")
	if idx < 0 {
		return i.hostname + ".oob"
	}
	return i.hostname[:idx] + ".oob" + i.hostname[idx:]
}

// OpenSession is a no-op: ipmitool negotiates a fresh RMCP+ session per
// invocation, which sidesteps the session expiry between cycles entirely.
func (i *IPMI) OpenSession() error {
	return nil
}

func (i *IPMI) CloseSession() error {
	return nil
}

func (i *IPMI) run(args ...string) (string, error) {
	base := []string{
		"-I", "lanplus",
		"-H", i.BMC(),
		"-U", i.auth.User,
		"-P", i.auth.Password,
	}
	cmd := exec.Command("ipmitool", append(base, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: ipmitool %s for %s: %v, output: %s",
			ErrInterface, strings.Join(args, " "), i.BMC(), err, string(output))
	}
	return string(output), nil
}

func (i *IPMI) Power() (bool, error) {
	output, err := i.run("power", "status")
	if err != nil {
		return false, err
	}
	return strings.Contains(output, "is on"), nil
}

func (i *IPMI) SetPower(cmd PowerCommand) error {
	var action string
	switch cmd {
	case PowerOn:
		action = "on"
	case PowerSoftOff:
		action = "soft"
	default:
		return fmt.Errorf("unsupported power command: %d", cmd)
	}

	log.Debugf("Issue power %s command to %s", action, i.BMC())
	if _, err := i.run("power", action); err != nil {
		return err
	}
	metrics.PowerCommands.WithLabelValues(cmd.String()).Inc()
	return nil
}
