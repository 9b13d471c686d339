package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// DefaultSize is the edge length of uploaded artwork.
const DefaultSize = 512

// Preprocess center-crops the artwork to a square, scales it to size x size
// and re-encodes it as PNG.
func Preprocess(data []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}

	square := cropSquare(img)
	if size > 0 && square.Bounds().Dx() > size {
		square = resize.Resize(uint(size), uint(size), square, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, square); err != nil {
		return nil, fmt.Errorf("encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}

	side := min(w, h)
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	return resize.Thumbnail(uint(side), uint(side), img, resize.Lanczos3)
}
