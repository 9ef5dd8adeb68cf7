package util

import (
	"fmt"
	"io"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	DefaultConfigPath        string
	DefaultStateFilePath     string
	DefaultCommandListenAddr string
	DefaultCommandListenPort string
)

func init() {
	DefaultConfigPath = "/etc/powerkeeper/config.yaml"
	DefaultStateFilePath = "/var/tmp/powerkeeper_state.json"
	DefaultCommandListenAddr = "127.0.0.1"
	DefaultCommandListenPort = "10913"
}

func Version() string {
	return "v0.2.0"
}

// InitLogger configures the process-wide logrus instance. Called exactly once
// at startup; everything below main receives logging through the package-level
// logger rather than implicit per-module state.
func InitLogger(level string) error {
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %v", level, err)
	}

	log.SetLevel(logLevel)
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return nil
}

// SetupLogFile mirrors daemon output to a rotated log file in addition to
// stdout. An empty path leaves stdout-only logging in place.
func SetupLogFile(path string) {
	if path == "" {
		log.Warn("Log file not configured, logging to stdout only")
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	log.Infof("Log file configured at: %s", path)
}
