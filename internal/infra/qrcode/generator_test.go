package qrcode

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGRendersSquareImage(t *testing.T) {
	data, err := NewGenerator(0).PNG("https://localhost:5000/participant/7")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, DefaultSize, bounds.Dx())
	assert.Equal(t, DefaultSize, bounds.Dy())
}

func TestPNGRejectsOversizedContent(t *testing.T) {
	_, err := NewGenerator(128).PNG(string(bytes.Repeat([]byte("x"), 5000)))
	assert.Error(t, err)
}
