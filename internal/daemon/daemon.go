// Package daemon runs the periodic decision cycle and serves the command
// channel operators use to inspect and override it.
package daemon

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/bmc"
	"PowerKeeper/internal/collector"
	"PowerKeeper/internal/decision"
	"PowerKeeper/internal/metrics"
	"PowerKeeper/internal/pool"
	"PowerKeeper/internal/util"
)

type Daemon struct {
	config *Config
	pool   *pool.Pool
	server *echo.Echo

	// cycleMu serializes the decision cycle against operator commands that
	// mutate machine state. A forced transition waits for the in-flight
	// cycle to finish, never interleaves with it.
	cycleMu sync.Mutex

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New wires up the full daemon: inventory from the manifest, last snapshot
// applied on top, decision engine bound, command channel ready to start. Any
// error here is a configuration problem and fatal.
func New(config *Config) (*Daemon, error) {
	source := collector.NewHTTPSource(config.Collector.URL)
	auth := bmc.Credentials{
		User:     config.Management.User,
		Password: config.Management.Password,
	}

	p := pool.New(source, auth, config.Management.Interface, config.Daemon.StateFile)
	if err := p.Populate(config.Daemon.ManifestFile); err != nil {
		return nil, err
	}
	p.Load()

	engine, err := decision.New(config.Daemon.Engine, p, config.Daemon.IdleSeconds)
	if err != nil {
		return nil, err
	}
	p.SetEngine(engine)
	log.Infof("Using decision engine: %s", engine.Name())

	d := &Daemon{
		config:   config,
		pool:     p,
		shutdown: make(chan struct{}),
	}
	d.server = newServer(d)
	return d, nil
}

// Run drives the daemon until a termination signal or a shutdown command
// arrives. The first cycle runs immediately; afterwards one cycle starts per
// tick, and a cycle that overruns the interval simply delays the next one.
func (d *Daemon) Run() error {
	addr := net.JoinHostPort(d.config.Daemon.ListenAddr, d.config.Daemon.ListenPort)
	go func() {
		if err := d.server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Errorf("Command channel failed: %v", err)
		}
	}()
	log.Infof("Command channel listening on %s", addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	interval := time.Duration(d.config.Daemon.CycleIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("PowerKeeper %s started; cycle interval %s", util.Version(), interval)
	d.cycle()

	for {
		select {
		case <-ticker.C:
			d.cycle()
		case sig := <-sigs:
			log.Infof("Received %s, shutting down", sig)
			return d.stop()
		case <-d.shutdown:
			log.Info("Shutdown requested over the command channel")
			return d.stop()
		}
	}
}

// cycle runs one refresh -> decide -> persist -> cleanup pass.
func (d *Daemon) cycle() {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	start := time.Now()
	if err := d.pool.Decide(context.Background()); err != nil {
		log.Errorf("Decision cycle failed: %v", err)
		return
	}

	metrics.Cycles.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	updateMachineMetrics(d.pool)
	log.Debugf("Cycle finished in %s", time.Since(start).Round(time.Millisecond))
}

// requestShutdown asks the run loop to terminate. Safe to call more than
// once.
func (d *Daemon) requestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// stop finishes the in-flight work, persists a final snapshot, and closes the
// command channel.
func (d *Daemon) stop() error {
	d.cycleMu.Lock()
	d.pool.Persist()
	d.pool.Cleanup()
	d.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Errorf("Failed to shut down command channel: %v", err)
	}

	log.Info("PowerKeeper stopped")
	return nil
}
