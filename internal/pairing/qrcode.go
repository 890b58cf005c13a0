package pairing

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const (
	dataURLPrefix = "data:image/png;base64,"
	imageSize     = 256
)

// Encoder turns a raw pairing challenge into a scannable artifact.
type Encoder interface {
	Encode(code string) (string, error)
}

// QREncoder renders challenges as PNG QR codes wrapped in a data URL.
type QREncoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewQREncoder() *QREncoder {
	return &QREncoder{Size: imageSize, Level: qrcode.Medium}
}

func (e *QREncoder) Encode(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("empty pairing code")
	}
	png, err := qrcode.Encode(code, e.Level, e.Size)
	if err != nil {
		return "", errors.Wrap(err, "encode pairing qr")
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURL extracts the PNG bytes from an artifact produced by QREncoder.
func DecodeDataURL(artifact string) ([]byte, error) {
	if !strings.HasPrefix(artifact, dataURLPrefix) {
		return nil, errors.New("not a png data url")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(artifact, dataURLPrefix))
}
