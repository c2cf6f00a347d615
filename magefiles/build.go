//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

var shaderSources = []string{
	filepath.Join("resource", "shader", "vertex_shader.vert"),
	filepath.Join("resource", "shader", "pixel_shader.frag"),
}

// Compiles the GLSL shaders to SPIR-V next to their sources.
func (Build) Shaders() error {
	compiler := os.Getenv("GLSLC")
	if compiler == "" {
		compiler = "glslc"
	}
	for _, src := range shaderSources {
		out := src + ".spv"
		stale, err := target.Path(out, src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd(compiler, withArgs("-o", out, src), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the shaders and the anima-quad binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "anima-quad", "."), withStream())
	return err
}
