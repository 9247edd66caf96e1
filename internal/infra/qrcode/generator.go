package qrcode

import (
	"github.com/pkg/errors"
	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered edge length in pixels.
const DefaultSize = 256

// Generator renders QR codes as PNG images.
type Generator struct {
	size  int
	level qr.RecoveryLevel
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{size: size, level: qr.Medium}
}

// PNG encodes content into a square PNG.
func (g *Generator) PNG(content string) ([]byte, error) {
	png, err := qr.Encode(content, g.level, g.size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}
