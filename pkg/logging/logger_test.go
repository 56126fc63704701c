package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"voxgate/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}

	slog.Info("hello from test")
	if GlobalLogCapture.GetLastLine() == "" {
		t.Error("capture writer did not receive the log line")
	}
}

func TestRotatePaths(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "server.log")
	if err := os.WriteFile(path, []byte("previous run"), 0o644); err != nil {
		t.Fatal(err)
	}

	rotatePaths(path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("current log should have been rotated away")
	}
	data, err := os.ReadFile(path + ".old")
	if err != nil {
		t.Fatalf("rotated log missing: %v", err)
	}
	if string(data) != "previous run" {
		t.Errorf("rotated content = %q", data)
	}
}
