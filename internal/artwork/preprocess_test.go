package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestPreprocess_CropsAndScales(t *testing.T) {
	out, err := Preprocess(encodeJPEG(t, 300, 200), 64)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)
}

func TestPreprocess_SmallImageNotUpscaled(t *testing.T) {
	out, err := Preprocess(encodeJPEG(t, 40, 50), 64)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 40, w)
	assert.Equal(t, 40, h)
}

func TestPreprocess_InvalidData(t *testing.T) {
	_, err := Preprocess([]byte("not an image"), 64)
	assert.Error(t, err)
}
