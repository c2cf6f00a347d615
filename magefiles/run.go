//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the shaders and runs the sample.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", "."), withStream())
	return err
}

// Runs the sample for a few frames without a GPU.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", ".", "-config", "anima.headless.toml"), withStream())
	return err
}
