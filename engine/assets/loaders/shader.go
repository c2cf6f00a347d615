package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

const compileTimeout = 30 * time.Second

// ShaderLoader turns a GLSL source into SPIR-V words. The compiled module is
// cached next to the source as <path>.spv and rebuilt when the source is newer.
type ShaderLoader struct {
	binary BinaryLoader
}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	p := metadata.DefaultShaderParams()
	if sp, ok := params.(*metadata.ShaderResourceParams); ok && sp != nil && sp.Compiler != "" {
		p = *sp
	}

	output := path + ".spv"
	stale, err := needsCompile(path, output)
	if err != nil {
		return nil, err
	}
	if stale {
		if err := compile(p.Compiler, path, output); err != nil {
			return nil, err
		}
	}

	res, err := sl.binary.Load(output, map[string]string{"name": path})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrShaderCompile, err)
	}
	words := res.Data.([]uint32)
	if len(words) < 5 || words[0] != spirvMagic {
		return nil, fmt.Errorf("%s: %w: not a SPIR-V module", output, core.ErrShaderCompile)
	}
	res.Type = metadata.ResourceTypeShader
	return res, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	return sl.binary.Unload(res)
}

// needsCompile reports whether output is missing or older than source. A
// missing source with an existing output is served from the output alone.
func needsCompile(source, output string) (bool, error) {
	out, outErr := os.Stat(output)
	src, srcErr := os.Stat(source)
	switch {
	case srcErr != nil && outErr != nil:
		return false, fmt.Errorf("%s: %w", source, core.ErrAssetNotFound)
	case srcErr != nil:
		return false, nil
	case outErr != nil:
		return true, nil
	}
	return src.ModTime().After(out.ModTime()), nil
}

func compile(compiler, source, output string) error {
	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, compiler, "-o", output, source)
	cmd.Stderr = &stderr

	core.LogInfo("compiling shader '%s'", source)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			core.LogError("%s failed on '%s':\n%s", compiler, source, stderr.String())
		} else {
			core.LogError("could not run %s: %s", compiler, err)
		}
		return fmt.Errorf("%s: %w: %s", source, core.ErrShaderCompile, err)
	}
	return nil
}
