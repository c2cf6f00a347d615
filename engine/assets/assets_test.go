package assets

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func startManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(root); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { am.Shutdown() })
	return am
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want metadata.ResourceType
	}{
		{"texture/test.png", metadata.ResourceTypeImage},
		{"texture/TEST.PNG", metadata.ResourceTypeImage},
		{"texture/photo.jpeg", metadata.ResourceTypeImage},
		{"texture/old.bmp", metadata.ResourceTypeImage},
		{"texture/scan.tiff", metadata.ResourceTypeImage},
		{"texture/web.webp", metadata.ResourceTypeImage},
		{"shader/vertex_shader.vert", metadata.ResourceTypeShader},
		{"shader/pixel_shader.frag", metadata.ResourceTypeShader},
		{"shader/pixel_shader.frag.spv", metadata.ResourceTypeBinary},
		{"readme.txt", metadata.ResourceTypeNone},
		{"noext", metadata.ResourceTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.path); got != tt.want {
			t.Errorf("determineAssetType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestAssetIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "texture", "test.png"), []byte("png"))
	writeFile(t, filepath.Join(root, "shader", "vertex_shader.vert"), []byte("#version 450"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignored"))
	writeFile(t, filepath.Join(root, ".cache", "hidden.png"), []byte("png"))

	am := startManager(t, root)
	if am.Count() != 2 {
		t.Fatalf("count = %d, want 2", am.Count())
	}

	full := filepath.Join(root, "texture", "test.png")
	for _, name := range []string{full, "texture/test.png", "texture/../texture/test.png"} {
		got, err := am.Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%q): %s", name, err)
			continue
		}
		if got != full {
			t.Errorf("Resolve(%q) = %q, want %q", name, got, full)
		}
	}

	for _, name := range []string{"notes.txt", "texture/missing.png", ".cache/hidden.png"} {
		if _, err := am.Resolve(name); !errors.Is(err, core.ErrAssetNotFound) {
			t.Errorf("Resolve(%q): err = %v, want ErrAssetNotFound", name, err)
		}
	}

	info, err := am.Info("shader/vertex_shader.vert")
	if err != nil {
		t.Fatal(err)
	}
	if info.Type != metadata.ResourceTypeShader || info.Modified.IsZero() {
		t.Errorf("info = %+v", info)
	}
}

func TestInitializeMissingRoot(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()

	if err := am.Initialize(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, core.ErrAssetNotFound) {
		t.Errorf("err = %v, want ErrAssetNotFound", err)
	}
}

func waitForChange(t *testing.T, am *AssetManager, path string, removed bool) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-am.Changes():
			if e.Path == path && e.Removed == removed {
				return
			}
		case <-timeout:
			t.Fatalf("no change event for %s (removed=%t)", path, removed)
		}
	}
}

func TestAssetChanges(t *testing.T) {
	root := t.TempDir()
	texture := filepath.Join(root, "texture", "test.png")
	writeFile(t, texture, []byte("v1"))

	am := startManager(t, root)

	writeFile(t, texture, []byte("v2"))
	waitForChange(t, am, texture, false)

	// new directories are picked up as well
	created := filepath.Join(root, "extra", "more.png")
	writeFile(t, created, []byte("png"))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := am.Resolve(created); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never indexed", created)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.Remove(texture); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, am, texture, true)
	if _, err := am.Resolve(texture); !errors.Is(err, core.ErrAssetNotFound) {
		t.Errorf("removed asset still indexed: %v", err)
	}
}

func TestShutdownTwice(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %s", err)
	}
	if _, ok := <-am.Changes(); ok {
		t.Error("changes channel still open")
	}
}
