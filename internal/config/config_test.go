package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, help, err := Parse([]string{})
	if err != nil || help {
		t.Fatalf("unexpected error/help: err=%v help=%v", err, help)
	}
	if cfg.Port != 8080 || cfg.DataPath != "./Data" || cfg.WebPath != "./web" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WebsocketPort() != 8081 {
		t.Fatalf("expected websocket port 8081, got %d", cfg.WebsocketPort())
	}
}

func TestParseFlags(t *testing.T) {
	cfg, help, err := Parse([]string{"--port", "9000", "--log-level", "debug", "--no-file-log"})
	if err != nil || help {
		t.Fatalf("unexpected error/help: err=%v help=%v", err, help)
	}
	if cfg.Port != 9000 || cfg.LogLevel != LogLevelDebug || !cfg.NoFileLog {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseInvalidLogLevel(t *testing.T) {
	_, _, err := Parse([]string{"--log-level", "verbose"})
	if err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestParseHelp(t *testing.T) {
	_, help, err := Parse([]string{"-h"})
	if err != nil || !help {
		t.Fatalf("expected help=true, err=nil; got help=%v err=%v", help, err)
	}
}
