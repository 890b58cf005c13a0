package pairing

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQREncoderProducesPNGDataURL(t *testing.T) {
	enc := NewQREncoder()

	artifact, err := enc.Encode("2@abcdef,ghijkl,mnopqr,stuvwx")
	require.NoError(t, err)
	assert.Contains(t, artifact, "data:image/png;base64,")

	raw, err := DecodeDataURL(artifact)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestQREncoderRejectsEmptyCode(t *testing.T) {
	_, err := NewQREncoder().Encode("  ")
	assert.Error(t, err)

	_, err = DecodeDataURL("plain")
	assert.Error(t, err)
}
