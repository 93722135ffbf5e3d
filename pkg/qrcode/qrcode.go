package qrcode

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// PNG renders content as a PNG QR image, used by the raw image endpoint that
// WhatsApp messages link to.
func PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, defaultSize)
}

// DataURL renders content as an inline base64 PNG so the cashier frontend can
// drop it straight into an <img> tag.
func DataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, defaultSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
