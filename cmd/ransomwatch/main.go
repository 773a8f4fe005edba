// ransomwatch monitors a folder and raises alerts on
// ransomware-like filesystem behavior.
package main

import (
	"flag"
	"fmt"
	"os"

	"ransomwatch/internal/config"
	"ransomwatch/internal/logging"
)

// Set via -ldflags "-X main.version=..."
var version = "dev"

var configPath = flag.String("config", "", "path to config file (default: "+config.ConfigPath()+")")

func main() {
	flag.Usage = usage
	flag.Parse()

	cmd := "watch"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "watch":
		err = cmdWatch(args)
	case "safe-test":
		err = cmdSafeTest(args)
	case "status":
		err = cmdStatus(args)
	case "alerts":
		err = cmdAlerts(args)
	case "config":
		err = cmdConfig(args)
	case "version":
		fmt.Printf("ransomwatch %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `ransomwatch - folder behavior monitor

Usage: ransomwatch [options] [command] [args]

Commands:
  watch [-path dir]                 Monitor a folder (default command)
  safe-test [-path dir] [-seconds n] Monitor while generating benign test activity
  status                            Summarize the shared dashboard state
  alerts [-n N]                     Print the most recent alerts from the database
  config [-write path] [-init]      Print (or save) the effective configuration
  version                           Show version
  help                              Show this help message

Options:
  -config <path>  Path to config file`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(&logging.Config{
		Level:  level,
		Format: format,
		Output: cfg.Logging.Output,
		Rotation: logging.RotateConfig{
			Path:       cfg.Logging.FilePath,
			MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
		Component: "ransomwatch",
	})
}
