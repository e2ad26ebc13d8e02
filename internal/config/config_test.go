package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("unexpected addr %s", cfg.Server.Addr)
	}
	if cfg.Layout.RepelForce <= 0 {
		t.Error("expected positive repel force default")
	}
	if cfg.Render.MinStroke >= cfg.Render.MaxStroke {
		t.Errorf("stroke bounds inverted: min %v max %v",
			cfg.Render.MinStroke, cfg.Render.MaxStroke)
	}
	if cfg.Geocoder.JitterDeg <= 0 {
		t.Error("expected positive jitter default")
	}
	if cfg.Render.DotsPerEdge <= 0 {
		t.Error("expected positive dots-per-edge default")
	}
	if cfg.Render.MapNodeRadius <= 0 {
		t.Error("expected positive map node radius default")
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Run("partial config gets defaults applied", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "flowscope.yaml")
		data := []byte("version: 1\nlayout:\n  repel_force: 12000\n")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, _, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath: %v", err)
		}

		if cfg.Layout.RepelForce != 12000 {
			t.Errorf("expected override 12000, got %v", cfg.Layout.RepelForce)
		}
		if cfg.Layout.LinkDistance == 0 {
			t.Error("expected default link distance to be applied")
		}
		if cfg.Database.Path == "" {
			t.Error("expected default database path to be applied")
		}
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		if _, _, err := LoadFromPath(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, _, err := LoadFromPath("/nonexistent/flowscope.yaml"); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Layout.LinkStrength = 0.25

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Layout.LinkStrength != 0.25 {
		t.Errorf("expected link strength 0.25 after round trip, got %v",
			loaded.Layout.LinkStrength)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
