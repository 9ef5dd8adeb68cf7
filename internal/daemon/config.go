package daemon

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"PowerKeeper/internal/decision"
	"PowerKeeper/internal/util"
)

const DefaultCycleIntervalSeconds = 60

type Config struct {
	Daemon struct {
		CycleIntervalSeconds int    `yaml:"CycleIntervalSeconds"`
		Engine               string `yaml:"Engine"`
		IdleSeconds          int64  `yaml:"IdleSeconds"`
		StateFile            string `yaml:"StateFile"`
		ManifestFile         string `yaml:"ManifestFile"`
		LogFile              string `yaml:"LogFile"`
		LogLevel             string `yaml:"LogLevel"`
		ListenAddr           string `yaml:"ListenAddr"`
		ListenPort           string `yaml:"ListenPort"`
	} `yaml:"Daemon"`

	Collector struct {
		URL string `yaml:"URL"`
	} `yaml:"Collector"`

	Management struct {
		Interface string `yaml:"Interface"`
		User      string `yaml:"User"`
		Password  string `yaml:"Password"`
	} `yaml:"Management"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Daemon.CycleIntervalSeconds <= 0 {
		config.Daemon.CycleIntervalSeconds = DefaultCycleIntervalSeconds
	}
	if config.Daemon.Engine == "" {
		config.Daemon.Engine = "Sequential"
	}
	if config.Daemon.IdleSeconds <= 0 {
		config.Daemon.IdleSeconds = decision.DefaultIdleSeconds
	}
	if config.Daemon.StateFile == "" {
		config.Daemon.StateFile = util.DefaultStateFilePath
	}
	if config.Daemon.LogLevel == "" {
		config.Daemon.LogLevel = "info"
	}
	if config.Daemon.ListenAddr == "" {
		config.Daemon.ListenAddr = util.DefaultCommandListenAddr
	}
	if config.Daemon.ListenPort == "" {
		config.Daemon.ListenPort = util.DefaultCommandListenPort
	}
	if config.Collector.URL == "" {
		return fmt.Errorf("Collector URL is required")
	}
	if config.Management.Interface == "" {
		config.Management.Interface = "IPMI"
	}
	return nil
}

func PrintConfig(cfg *Config) {
	log.Info("PowerKeeper Configuration:")
	log.Info("----------------------------------------")
	log.Info("Daemon:")
	log.Infof("  CycleIntervalSeconds: %d", cfg.Daemon.CycleIntervalSeconds)
	log.Infof("  Engine: %s", cfg.Daemon.Engine)
	log.Infof("  IdleSeconds: %d", cfg.Daemon.IdleSeconds)
	log.Infof("  StateFile: %s", cfg.Daemon.StateFile)
	log.Infof("  ManifestFile: %s", cfg.Daemon.ManifestFile)
	log.Infof("  LogFile: %s", cfg.Daemon.LogFile)
	log.Infof("  LogLevel: %s", cfg.Daemon.LogLevel)
	log.Infof("  ListenAddr: %s", cfg.Daemon.ListenAddr)
	log.Infof("  ListenPort: %s", cfg.Daemon.ListenPort)

	log.Info("Collector:")
	log.Infof("  URL: %s", cfg.Collector.URL)

	log.Info("Management:")
	log.Infof("  Interface: %s", cfg.Management.Interface)
	log.Infof("  User: %s", cfg.Management.User)
	log.Info("  Password: ********")
	log.Info("----------------------------------------")
}
