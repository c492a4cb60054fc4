package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the default config location at an empty directory
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Subscribe.Tasks || cfg.Subscribe.Projects {
		t.Errorf("subscribe = %+v, want tasks only", cfg.Subscribe)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Reconnect.Initial != time.Second || cfg.Reconnect.Max != 30*time.Second {
		t.Errorf("reconnect = %+v", cfg.Reconnect)
	}
	if cfg.Realtime.Listen != "127.0.0.1:7420" || cfg.Realtime.URL != "" {
		t.Errorf("realtime = %+v", cfg.Realtime)
	}
	if !cfg.Watch.External {
		t.Error("external watch should default on")
	}
}

func TestLoad_DefaultFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "taskboard", "config.yaml"), `
database:
  path: /tmp/board.db
subscribe:
  projects: true
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/board.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if !cfg.Subscribe.Tasks || !cfg.Subscribe.Projects {
		t.Errorf("subscribe = %+v, want both", cfg.Subscribe)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, `
log:
  level: debug
reconnect:
  initial: 250ms
  max: 5s
realtime:
  url: ws://127.0.0.1:9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Reconnect.Initial != 250*time.Millisecond || cfg.Reconnect.Max != 5*time.Second {
		t.Errorf("reconnect = %+v", cfg.Reconnect)
	}
	if cfg.Realtime.URL != "ws://127.0.0.1:9000" {
		t.Errorf("realtime.url = %q", cfg.Realtime.URL)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load should fail for a missing explicit file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "taskboard", "config.yaml"), `
database:
  path: /from/file.db
`)
	t.Setenv("TASKBOARD_DATABASE_PATH", "/from/env.db")
	t.Setenv("TASKBOARD_SUBSCRIBE_PROJECTS", "true")
	t.Setenv("TASKBOARD_RECONNECT_MAX", "1m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("database.path = %q, want env value", cfg.Database.Path)
	}
	if !cfg.Subscribe.Projects {
		t.Error("subscribe.projects should come from env")
	}
	if cfg.Reconnect.Max != time.Minute {
		t.Errorf("reconnect.max = %s", cfg.Reconnect.Max)
	}
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, `
reconnect:
  initial: 10s
  max: 1s
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should reject max below initial")
	}
	if !strings.Contains(err.Error(), "reconnect.max") {
		t.Errorf("error = %v", err)
	}
}

func TestLogPath(t *testing.T) {
	cfg := Default()
	if got := cfg.LogPath("/data/taskboard/taskboard.db"); got != filepath.Join("/data/taskboard", "taskboard.log") {
		t.Errorf("LogPath() = %q", got)
	}
	cfg.Log.File = "/var/log/tb.log"
	if got := cfg.LogPath("/data/taskboard/taskboard.db"); got != "/var/log/tb.log" {
		t.Errorf("LogPath() = %q", got)
	}
}

func TestDefaultPath(t *testing.T) {
	dir := isolate(t)
	if got, want := DefaultPath(), filepath.Join(dir, "taskboard", "config.yaml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
