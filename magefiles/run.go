//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed on the headless device. SCHEDULER_CONFIG selects a
// TOML configuration file.
func (Run) Testbed() error {
	mg.Deps(Build.All)

	args := []string{}
	if path := os.Getenv("SCHEDULER_CONFIG"); path != "" {
		args = append(args, "-config", path)
	}
	fmt.Println("Run testbed...")
	if _, err := executeCmd("bin/anima-scheduler", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
