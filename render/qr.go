// Package render draws the certificate artifacts: the QR code image and the
// printable certificate PDF.
package render

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRPixels is the side length of the QR image.
const DefaultQRPixels = 512

// QRRenderer turns locator text into a PNG image.
type QRRenderer interface {
	Render(content string, px int) ([]byte, error)
}

// QR renders with skip2/go-qrcode. A zero Level means qrcode.High.
type QR struct {
	Level qrcode.RecoveryLevel
}

var _ QRRenderer = QR{}

func (q QR) Render(content string, px int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("render: empty QR content")
	}
	if px <= 0 {
		px = DefaultQRPixels
	}
	level := q.Level
	if level == qrcode.Low {
		level = qrcode.High
	}
	png, err := qrcode.Encode(content, level, px)
	if err != nil {
		return nil, fmt.Errorf("render: qr encode: %w", err)
	}
	return png, nil
}
