package daemon

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/api"
	"PowerKeeper/internal/util"
)

// Start runs the daemon in the foreground until it is told to stop.
func Start() util.PowerCmdError {
	config, err := LoadConfig(FlagConfigFilePath)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		return util.ErrorConfig
	}
	applyFlags(config)

	if err := util.InitLogger(config.Daemon.LogLevel); err != nil {
		log.Errorf("Failed to initialize logging: %v", err)
		return util.ErrorConfig
	}
	util.SetupLogFile(config.Daemon.LogFile)
	PrintConfig(config)

	if config.Daemon.ManifestFile == "" {
		log.Error("No machine manifest configured; set ManifestFile or pass --manifest")
		return util.ErrorConfig
	}

	d, err := New(config)
	if err != nil {
		log.Errorf("Failed to start daemon: %v", err)
		return util.ErrorConfig
	}
	if err := d.Run(); err != nil {
		log.Errorf("Daemon terminated abnormally: %v", err)
		return util.ErrorExecuteFailed
	}
	return util.ErrorSuccess
}

// applyFlags lays the command-line overrides over the loaded configuration.
// The management password falls back to the IPMIPASSWORD environment
// variable, which is scrubbed after reading so child processes never see it.
func applyFlags(config *Config) {
	if FlagPassword == "" {
		if env := os.Getenv("IPMIPASSWORD"); env != "" {
			FlagPassword = env
			os.Unsetenv("IPMIPASSWORD")
		}
	}
	if FlagUser != "" {
		config.Management.User = FlagUser
	}
	if FlagPassword != "" {
		config.Management.Password = FlagPassword
	}
	if FlagManifestFile != "" {
		config.Daemon.ManifestFile = FlagManifestFile
	}
	if FlagStateFile != "" {
		config.Daemon.StateFile = FlagStateFile
	}
	if FlagLogLevel != "" {
		config.Daemon.LogLevel = FlagLogLevel
	}
}

// Stop asks the running daemon to shut down over the command channel.
func Stop() util.PowerCmdError {
	msg, err := commandClient().Shutdown()
	if err != nil {
		fmt.Printf("Failed to stop daemon: %v\n", err)
		return util.ErrorNetwork
	}
	fmt.Println(msg)
	return util.ErrorSuccess
}

// Reload asks the running daemon to rebuild its inventory from the manifest.
func Reload() util.PowerCmdError {
	msg, err := commandClient().Reload(FlagManifestFile)
	if err != nil {
		fmt.Printf("Failed to reload daemon: %v\n", err)
		return util.ErrorNetwork
	}
	fmt.Println(msg)
	return util.ErrorSuccess
}

// commandClient builds a client for the local daemon's command channel,
// falling back to the default listen address when no configuration can be
// read.
func commandClient() *api.Client {
	addr := util.DefaultCommandListenAddr
	port := util.DefaultCommandListenPort
	if config, err := LoadConfig(FlagConfigFilePath); err == nil {
		addr = config.Daemon.ListenAddr
		port = config.Daemon.ListenPort
	}
	return api.NewClient(addr, port)
}
