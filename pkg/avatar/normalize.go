package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// AvatarSize is the fixed edge length every stored avatar is normalized to.
	AvatarSize = 256
	// AvatarQuality is the fixed lossy encoding quality.
	AvatarQuality = 80
	// AvatarExtension is the stored asset format. The filename contract is
	// stable across versions; the idempotent short-circuit keys on it.
	AvatarExtension = ".jpg"
)

// Normalize decodes raw image bytes and produces the standard avatar asset:
// center-cropped to a square on the shorter dimension, resampled to
// AvatarSize with a high-quality filter, any transparency flattened onto a
// white background, encoded lossily at AvatarQuality.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	side := width
	if height < side {
		side = height
	}
	if side <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	square := image.Rect(
		bounds.Min.X+(width-side)/2,
		bounds.Min.Y+(height-side)/2,
		bounds.Min.X+(width-side)/2+side,
		bounds.Min.Y+(height-side)/2+side,
	)

	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, square, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: AvatarQuality}); err != nil {
		return nil, fmt.Errorf("encoding avatar: %w", err)
	}
	return buf.Bytes(), nil
}
