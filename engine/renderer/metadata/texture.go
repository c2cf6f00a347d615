package metadata

import "github.com/google/uuid"

/**
 * @brief Represents a texture loaded from disk, before it is uploaded.
 */
type Texture struct {
	/** @brief Unique identity of this load. A reload produces a new ID. */
	ID uuid.UUID
	/** @brief The texture Name, the file name it was loaded from. */
	Name string
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief The number of channels in the texture. */
	ChannelCount uint8
	/** @brief Indicates if any pixel is not fully opaque. */
	HasTransparency bool
	/** @brief The raw texture data (RGBA8 pixels). */
	Pixels []uint8
}

// NewTextureFromImage wraps decoded image data into a texture with a fresh ID.
func NewTextureFromImage(name string, img *ImageResourceData) *Texture {
	t := &Texture{
		ID:           uuid.New(),
		Name:         name,
		Width:        img.Width,
		Height:       img.Height,
		ChannelCount: img.ChannelCount,
		Pixels:       img.Pixels,
	}
	for i := 3; i < len(img.Pixels); i += 4 {
		if img.Pixels[i] < 255 {
			t.HasTransparency = true
			break
		}
	}
	return t
}
