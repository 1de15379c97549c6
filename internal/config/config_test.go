package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapvideo.yaml")
	yaml := "listen_addr: \":9000\"\nworkers: 4\nregion_poll_interval: 100ms\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if time.Duration(cfg.RegionPollInterval) != 100*time.Millisecond {
		t.Errorf("RegionPollInterval = %v", cfg.RegionPollInterval)
	}
	// Untouched keys keep their defaults.
	if cfg.UpstreamURL != Default().UpstreamURL {
		t.Errorf("UpstreamURL = %s", cfg.UpstreamURL)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapvideo.yaml")
	if err := os.WriteFile(path, []byte("status_max_wait: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected an error for a malformed duration")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("MAPVIDEO_DATA_DIR", "/tmp/frames")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.ListenAddr != ":3000" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.DataDir != "/tmp/frames" {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
	if cfg.VideoDir != Default().VideoDir {
		t.Errorf("VideoDir changed without an override: %s", cfg.VideoDir)
	}
}
