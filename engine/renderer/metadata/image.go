package metadata

/**
 * @brief Decoded image, always 4 channels of 8 bits (RGBA8), rows stored
 * top row first without padding.
 */
type ImageResourceData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []uint8
}

// Valid reports whether the pixel data matches the image size.
func (img *ImageResourceData) Valid() bool {
	return img != nil && img.Width > 0 && img.Height > 0 && img.ChannelCount == 4 &&
		len(img.Pixels) == int(img.Width)*int(img.Height)*4
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Flip the rows so the bottom row comes first. */
	FlipY bool
}
