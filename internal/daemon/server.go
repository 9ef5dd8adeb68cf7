package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/api"
	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/metrics"
)

func newServer(d *Daemon) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": "powerkeeper"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/state", d.handleState)
	v1.GET("/status", d.handleStatus)
	v1.POST("/reload", d.handleReload)
	v1.POST("/shutdown", d.handleShutdown)

	return e
}

// handleState forces machines into an operator-chosen state. It waits for the
// in-flight cycle before touching anything, so a transition never lands in
// the middle of a decision pass.
func (d *Daemon) handleState(c echo.Context) error {
	var req api.StateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body: " + err.Error()})
	}

	state, ok := machine.StateByName(req.State)
	if !ok {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error: fmt.Sprintf("unknown state: %s (known: %v)", req.State, machine.StateNames()),
		})
	}
	if len(req.Machines) == 0 {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "no machines named"})
	}

	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	results := make(map[string]string, len(req.Machines))
	for _, name := range req.Machines {
		m, ok := d.pool.Machine(name)
		if !ok {
			results[name] = "machine not found"
			continue
		}
		previous := m.State()
		m.ForceState(state)
		metrics.ForcedTransitions.Inc()
		log.Infof("Operator forced %s from %s to %s", name, previous, state.Name())
		results[name] = fmt.Sprintf("transitioned %s to %s", previous, state.Name())
	}
	d.pool.Persist()
	updateMachineMetrics(d.pool)

	return c.JSON(http.StatusOK, api.StateResponse{Results: results})
}

func (d *Daemon) handleStatus(c echo.Context) error {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	now := time.Now().Unix()
	rows := make([]api.StatusRow, 0, len(d.pool.Machines()))
	for _, m := range d.pool.Machines() {
		rows = append(rows, api.StatusRow{
			Name:            m.Name(),
			State:           string(m.State()),
			Slots:           len(m.Slots()),
			Timer:           m.Timer(),
			SinceLastActive: now - m.LastActive(),
		})
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Machines: rows})
}

// handleReload rebuilds the inventory from the manifest between cycles. The
// old inventory stays in place when the new manifest does not load.
func (d *Daemon) handleReload(c echo.Context) error {
	var req api.ReloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body: " + err.Error()})
	}

	manifest := req.Manifest
	if manifest == "" {
		manifest = d.config.Daemon.ManifestFile
	}

	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	if err := d.pool.Reload(manifest); err != nil {
		log.Errorf("Reload failed: %v", err)
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
	}
	d.config.Daemon.ManifestFile = manifest
	updateMachineMetrics(d.pool)

	return c.JSON(http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("reloaded %d machines from %s", len(d.pool.Machines()), manifest),
	})
}

func (d *Daemon) handleShutdown(c echo.Context) error {
	d.requestShutdown()
	return c.JSON(http.StatusOK, api.MessageResponse{Message: "shutting down"})
}
