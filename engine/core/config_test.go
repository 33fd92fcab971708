package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("have %+v, want defaults", cfg)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
[log]
level = "debug"

[scheduler]
pool_grow_step = 8
profiling = true

[headless]
latency = "250us"

[engine]
frames = 100
finish_every = 10
`)
	cfg := DefaultConfig()
	if err := ParseConfig(data, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level: have %q", cfg.Log.Level)
	}
	if cfg.Scheduler.PoolGrowStep != 8 || !cfg.Scheduler.Profiling {
		t.Errorf("scheduler: have %+v", cfg.Scheduler)
	}
	// Keys absent from the file keep their defaults.
	if !cfg.Scheduler.Checkpoints {
		t.Error("checkpoints default lost")
	}
	if cfg.Engine.TargetFPS != 60 {
		t.Errorf("target_fps: have %d", cfg.Engine.TargetFPS)
	}
	if cfg.Headless.Latency.Duration != 250*time.Microsecond {
		t.Errorf("latency: have %v", cfg.Headless.Latency)
	}
	if cfg.Engine.Frames != 100 || cfg.Engine.FinishEvery != 10 {
		t.Errorf("engine: have %+v", cfg.Engine)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"grow step", "[scheduler]\npool_grow_step = 0\n"},
		{"negative latency", "[headless]\nlatency = \"-1ms\"\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ParseConfig([]byte(c.data), DefaultConfig())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("have %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := ParseConfig([]byte("[headless]\nlatency = \"soon\"\n"), DefaultConfig()); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("have %v, want ErrNotExist", err)
	}
}

func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Config, 4)
	w, err := WatchConfig(path, func(cfg *Config) { changes <- cfg })
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-changes:
		// A write may be seen as several events; the first parse may see a
		// truncated file and keep defaults, so wait for the final value.
		for cfg.Log.Level != "warn" {
			select {
			case cfg = <-changes:
			case <-time.After(5 * time.Second):
				t.Fatalf("level: have %q, want warn", cfg.Log.Level)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); !errors.Is(err, ErrWatcherAlreadyClose) {
		t.Fatalf("second Close: have %v", err)
	}
}
