package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

// ImageLoader decodes png, jpeg, bmp, tiff and webp files into RGBA8 pixels.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	flip := false
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %s", path, core.ErrAssetLoad, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", path, core.ErrAssetLoad, err)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%s: %w: empty image", path, core.ErrAssetLoad)
	}

	rgba := toRGBA(src)
	if flip {
		flipRows(rgba)
	}
	core.LogDebug("decoded %s image '%s' (%dx%d)", format, path, bounds.Dx(), bounds.Dy())

	return &metadata.Resource{
		Type:     metadata.ResourceTypeImage,
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(rgba.Pix)),
		Data: &metadata.ImageResourceData{
			ChannelCount: 4,
			Width:        uint32(bounds.Dx()),
			Height:       uint32(bounds.Dy()),
			Pixels:       rgba.Pix,
		},
	}, nil
}

func (il *ImageLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

// toRGBA returns a tightly packed RGBA copy of img with its origin at 0,0.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	row := make([]uint8, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
