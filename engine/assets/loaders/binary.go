package loaders

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

// BinaryLoader reads a file as little-endian 32-bit words.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %s", path, core.ErrAssetLoad, err)
	}

	words, err := bytesToWords(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", path, core.ErrAssetLoad, err)
	}

	name := path
	if p, ok := params.(map[string]string); ok && p["name"] != "" {
		name = p["name"]
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeBinary,
		Name:     name,
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     words,
	}, nil
}

func (bl *BinaryLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

func bytesToWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("size %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
