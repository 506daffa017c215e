// Package qrcode renders emergency links as PNG data URLs and works out the
// public base URL those links point at.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"image/color"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	defaultSize = 300
	dataURLPNG  = "data:image/png;base64,"
)

// Renderer encodes text as a QR code PNG.
type Renderer struct {
	Size       int
	Level      goqrcode.RecoveryLevel
	Foreground color.Color
	Background color.Color
}

// NewRenderer returns a Renderer with high error correction so printed codes
// survive wear.
func NewRenderer() *Renderer {
	return &Renderer{
		Size:       defaultSize,
		Level:      goqrcode.High,
		Foreground: color.RGBA{R: 0x1a, G: 0x56, B: 0xdb, A: 0xff},
		Background: color.White,
	}
}

// PNG returns the raw PNG bytes for content.
func (r *Renderer) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	q, err := goqrcode.New(content, r.Level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.ForegroundColor = r.Foreground
	q.BackgroundColor = r.Background
	size := r.Size
	if size <= 0 {
		size = defaultSize
	}
	png, err := q.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}

// DataURL renders content as a data:image/png;base64 URL.
func (r *Renderer) DataURL(content string) (string, error) {
	png, err := r.PNG(content)
	if err != nil {
		return "", err
	}
	return dataURLPNG + base64.StdEncoding.EncodeToString(png), nil
}
