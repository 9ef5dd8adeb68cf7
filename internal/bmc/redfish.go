package bmc

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/metrics"
)

const redfishSystemPath = "/redfish/v1/Systems/1"

// Redfish drives a BMC over its Redfish REST endpoint. BMCs ship self-signed
// certificates, so verification is disabled on the dedicated management
// network.
type Redfish struct {
	hostname string
	auth     Credentials
	client   *http.Client
}

func NewRedfish(hostname string, auth Credentials) Interface {
	return &Redfish{
		hostname: hostname,
		auth:     auth,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (r *Redfish) BMC() string {
	idx := strings.Index(r.hostname, ".")
	if idx < 0 {
		return r.hostname + ".oob"
	}
	return r.hostname[:idx] + ".oob" + r.hostname[idx:]
}

func (r *Redfish) OpenSession() error {
	return nil
}

func (r *Redfish) CloseSession() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Redfish) Power() (bool, error) {
	req, err := http.NewRequest(http.MethodGet, "https://"+r.BMC()+redfishSystemPath, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInterface, err)
	}
	req.SetBasicAuth(r.auth.User, r.auth.Password)

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: query power state of %s: %v", ErrInterface, r.BMC(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read response from %s: %v", ErrInterface, r.BMC(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: %s returned status %d: %s",
			ErrInterface, r.BMC(), resp.StatusCode, string(body))
	}

	var system struct {
		PowerState string `json:"PowerState"`
	}
	if err := json.Unmarshal(body, &system); err != nil {
		return false, fmt.Errorf("%w: decode system resource of %s: %v", ErrInterface, r.BMC(), err)
	}
	return system.PowerState == "On", nil
}

func (r *Redfish) SetPower(cmd PowerCommand) error {
	var resetType string
	switch cmd {
	case PowerOn:
		resetType = "On"
	case PowerSoftOff:
		resetType = "GracefulShutdown"
	default:
		return fmt.Errorf("unsupported power command: %d", cmd)
	}

	payload, _ := json.Marshal(map[string]string{"ResetType": resetType})
	url := "https://" + r.BMC() + redfishSystemPath + "/Actions/ComputerSystem.Reset"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInterface, err)
	}
	req.SetBasicAuth(r.auth.User, r.auth.Password)
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("Issue Redfish %s reset to %s", resetType, r.BMC())
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: reset %s: %v", ErrInterface, r.BMC(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s returned status %d: %s",
			ErrInterface, r.BMC(), resp.StatusCode, string(body))
	}
	metrics.PowerCommands.WithLabelValues(cmd.String()).Inc()
	return nil
}
