package services

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length in pixels.
const DefaultQRSize = 256

// ShareQRPNG renders a share URL as a PNG QR code.
func ShareQRPNG(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}

// ShareQRText renders a share URL as a QR code drawn with block characters,
// two modules per line, for printing to a terminal.
func ShareQRText(url string) (string, error) {
	q, err := qrcode.New(url, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}
