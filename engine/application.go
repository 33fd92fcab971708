package engine

import (
	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

type ApplicationConfig struct {
	// The application name used in logs.
	Name string
	// Loaded configuration; nil means core.DefaultConfig().
	Config *core.Config
}
