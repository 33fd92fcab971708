package core

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk configuration of the scheduler host.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Headless  HeadlessConfig  `toml:"headless"`
	Engine    EngineConfig    `toml:"engine"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SchedulerConfig struct {
	// Number of command buffers added each time the pool runs dry.
	PoolGrowStep int `toml:"pool_grow_step"`
	// Bracket each recorded command buffer with a profiling scope.
	Profiling bool `toml:"profiling"`
	// Collect diagnostic checkpoints on device loss when the queue supports them.
	Checkpoints bool `toml:"checkpoints"`
}

type HeadlessConfig struct {
	// Simulated time between a submission and its timeline signal.
	Latency Duration `toml:"latency"`
}

type EngineConfig struct {
	// Frames to run before stopping; zero runs until shutdown.
	Frames uint64 `toml:"frames"`
	// Every FinishEvery frames the host blocks until the device is idle.
	FinishEvery uint64 `toml:"finish_every"`
	TargetFPS   uint32 `toml:"target_fps"`
}

// Duration decodes TOML strings such as "2ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			PoolGrowStep: 4,
			Profiling:    false,
			Checkpoints:  true,
		},
		Headless: HeadlessConfig{Latency: Duration{time.Millisecond}},
		Engine: EngineConfig{
			Frames:      0,
			FinishEvery: 60,
			TargetFPS:   60,
		},
	}
}

// LoadConfig reads a TOML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg and validates the result.
func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if c.Scheduler.PoolGrowStep <= 0 {
		return fmt.Errorf("%w: pool_grow_step must be positive, got %d", ErrInvalidConfig, c.Scheduler.PoolGrowStep)
	}
	if c.Headless.Latency.Duration < 0 {
		return fmt.Errorf("%w: negative headless latency", ErrInvalidConfig)
	}
	return nil
}
