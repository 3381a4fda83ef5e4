// Package qr encodes journey codes as PNG QR images and reads them back
// from uploaded photos.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"io"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of generated codes.
const DefaultSize = 200

// MaxImageBytes caps uploaded images.
const MaxImageBytes = 5 << 20

var (
	ErrEmptyContent = errors.New("qr: empty content")
	ErrBadImage     = errors.New("qr: unreadable image")
	ErrNoCode       = errors.New("qr: no code found in image")
)

// Encode renders content as a PNG QR code of size×size pixels
// (DefaultSize when size <= 0).
func Encode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// Decode reads the text of the first QR code found in a PNG or JPEG image.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(io.LimitReader(r, MaxImageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return DecodeImage(img)
}

// DecodeImage is Decode for an already decoded image.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return res.GetText(), nil
}

// DecodeBytes is Decode for an in-memory image.
func DecodeBytes(b []byte) (string, error) {
	return Decode(bytes.NewReader(b))
}
