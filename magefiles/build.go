//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Tidies the module and builds every package and the testbed binary.
func (Build) All() error {
	if err := goTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "./..."), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/anima-scheduler", "."), withStream())
	return err
}
