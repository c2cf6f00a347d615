package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-quad/engine/assets/loaders"
	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

// changes not consumed in time are dropped
const changeBacklog = 16

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	Modified   time.Time
	LastLoaded time.Time
}

// AssetManager indexes the files under a root directory and watches them for
// changes. The index is safe for concurrent use, change notifications are
// delivered on Changes and meant to be drained by the main loop.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	fsnotify *fsnotify.Watcher
	changes  chan core.AssetEvent
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan core.AssetEvent, changeBacklog),
		done:     make(chan struct{}),
	}
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	return am, nil
}

// Initialize indexes and watches root and all sub-directories.
func (am *AssetManager) Initialize(root string) error {
	if am.isClosed {
		return errors.New("asset manager already shut down")
	}
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("asset root '%s': %w", root, core.ErrAssetNotFound)
	}
	am.root = filepath.Clean(root)

	if err := am.watchRecursive(am.root); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()

	core.LogInfo("asset manager watching '%s' (%d assets)", am.root, am.Count())
	return nil
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	close(am.changes)
	return am.fsnotify.Close()
}

// Changes delivers one event per create, write, remove or rename of an
// indexed asset. The channel is closed by Shutdown.
func (am *AssetManager) Changes() <-chan core.AssetEvent {
	return am.changes
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Resolve returns the index key of an asset given either its path or its
// path relative to the root.
func (am *AssetManager) Resolve(name string) (string, error) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	for _, candidate := range []string{filepath.Clean(name), filepath.Join(am.root, name)} {
		if _, ok := am.assets[candidate]; ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, core.ErrAssetNotFound)
}

func (am *AssetManager) Info(name string) (AssetInfo, error) {
	path, err := am.Resolve(name)
	if err != nil {
		return AssetInfo{}, err
	}
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.assets[path], nil
}

func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads an indexed asset with the loader of its type.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	path, err := am.Resolve(name)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	asset := am.assets[path]
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	am.mutex.Unlock()

	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset type %s", asset.Type)
	}
	return loader.Load(path, params)
}

func (am *AssetManager) UnloadAsset(res *metadata.Resource) error {
	if res == nil {
		return nil
	}
	loader, ok := am.loaders[res.Type]
	if !ok {
		return fmt.Errorf("no loader registered for asset type %s", res.Type)
	}
	return loader.Unload(res)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	path := filepath.Clean(e.Name)

	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(path); err == nil && s.IsDir() {
			if err := am.watchRecursive(path); err != nil {
				core.LogWarn("could not watch '%s': %s", path, err)
			}
			return
		}
	}

	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if am.index(path) {
			am.notify(core.AssetEvent{Path: path})
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Can't stat a deleted path, so it may have been a directory as well.
		am.fsnotify.Remove(path)
		if am.removeAsset(path) {
			am.notify(core.AssetEvent{Path: path, Removed: true})
		}
	}
}

func (am *AssetManager) notify(event core.AssetEvent) {
	select {
	case am.changes <- event:
	default:
		core.LogDebug("asset change backlog full, dropping '%s'", event.Path)
	}
}

// watchRecursive adds all directories under path to the watch list and
// indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if strings.HasPrefix(fi.Name(), ".") && walkPath != path {
				return filepath.SkipDir
			}
			return am.fsnotify.Add(walkPath)
		}
		am.index(walkPath)
		return nil
	})
}

// index records a file if its type is known and reports whether it did.
func (am *AssetManager) index(path string) bool {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return false
	}

	modified := time.Now()
	if fi, err := os.Stat(path); err == nil {
		modified = fi.ModTime()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	info.Modified = modified
	am.assets[path] = info
	return true
}

func (am *AssetManager) removeAsset(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if _, ok := am.assets[path]; !ok {
		return false
	}
	delete(am.assets, path)
	return true
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".vert", ".frag":
		return metadata.ResourceTypeShader
	case ".spv":
		return metadata.ResourceTypeBinary
	default:
		return metadata.ResourceTypeNone
	}
}
