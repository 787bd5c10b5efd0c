// Package config resolves the server's startup configuration from CLI
// flags, environment variables (loaded from .env via godotenv where
// present), and documented defaults, matching the original command-line
// contract.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LogLevel is one of the four accepted --log-level values.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// Config is the fully resolved startup configuration.
type Config struct {
	Port         int
	DataPath     string
	WebPath      string
	NoConsoleLog bool
	NoFileLog    bool
	LogLevel     LogLevel

	DBType      string // "json" (default) or "postgres"
	DatabaseURL string

	ServerName string
	GameVersion string
	MaxPlayers int
}

// defaults mirrors the CLI contract's documented defaults.
func defaults() Config {
	return Config{
		Port:        8080,
		DataPath:    "./Data",
		WebPath:     "./web",
		LogLevel:    LogLevelInfo,
		DBType:      "json",
		ServerName:  "Maze Game Server",
		GameVersion: "1.0.0",
		MaxPlayers:  10,
	}
}

// Parse resolves configuration from .env (if present), environment
// variables, then CLI flags in args (highest precedence), or returns a
// help request.
func Parse(args []string) (Config, bool, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug(".env file not found or could not be loaded")
	}

	cfg := defaults()
	if v := os.Getenv("DB_TYPE"); v != "" {
		cfg.DBType = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	fs := flag.NewFlagSet("mazegame-server", flag.ContinueOnError)
	var help bool
	fs.IntVar(&cfg.Port, "p", cfg.Port, "HTTP port (game socket runs on port+1)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port (game socket runs on port+1)")
	fs.StringVar(&cfg.DataPath, "d", cfg.DataPath, "data directory")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "data directory")
	fs.StringVar(&cfg.WebPath, "w", cfg.WebPath, "web root directory")
	fs.StringVar(&cfg.WebPath, "web", cfg.WebPath, "web root directory")
	fs.BoolVar(&cfg.NoConsoleLog, "no-console-log", false, "disable console logging")
	fs.BoolVar(&cfg.NoFileLog, "no-file-log", false, "disable file logging")
	var logLevel string
	fs.StringVar(&logLevel, "log-level", string(cfg.LogLevel), "log level: debug|info|warning|error")
	fs.BoolVar(&help, "h", false, "show usage")
	fs.BoolVar(&help, "help", false, "show usage")

	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}
	if help {
		return Config{}, true, nil
	}

	level := LogLevel(strings.ToLower(logLevel))
	switch level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		cfg.LogLevel = level
	default:
		return Config{}, false, fmt.Errorf("invalid --log-level %q: must be debug, info, warning, or error", logLevel)
	}

	return cfg, false, nil
}

// Usage returns the CLI's static help text.
func Usage() string {
	return strings.Join([]string{
		"Usage: mazegame-server [flags]",
		"  -p, --port <n>        HTTP port (default 8080); game socket runs on port+1",
		"  -d, --data <path>     data directory (default ./Data)",
		"  -w, --web <path>      web root directory (default ./web)",
		"      --no-console-log  disable console logging",
		"      --no-file-log     disable file logging",
		"      --log-level <lv>  debug|info|warning|error (default info)",
		"  -h, --help            show this message",
	}, "\n")
}

// WebsocketPort is the game socket's port: one above the HTTP port, per
// §6.
func (c Config) WebsocketPort() int { return c.Port + 1 }
