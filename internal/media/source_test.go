package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	img, err := decodeDataURL("data:image/png;base64," + pixelPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.mimeType)
	assert.Equal(t, "data", img.source)
	assert.NotEmpty(t, img.data)

	img, err = decodeDataURL("data:image/svg+xml,%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%2F%3E")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", img.mimeType)
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`, string(img.data))

	img, err = decodeDataURL("data:;base64," + pixelPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.mimeType, "missing type is sniffed")

	_, err = decodeDataURL("data:image/png;base64")
	assert.Error(t, err)
	_, err = decodeDataURL("data:image/png;base64,!!!")
	assert.Error(t, err)
	_, err = decodeDataURL("https://x/y.png")
	assert.ErrorIs(t, err, errUnsupportedSource)
}

func TestNormalizeMime(t *testing.T) {
	assert.Equal(t, "image/webp", normalizeMime("IMAGE/WEBP", nil))
	assert.Equal(t, "image/jpeg", normalizeMime("", []byte("not an image")))
	assert.Equal(t, "image/jpeg", normalizeMime("application/octet-stream", nil))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".gif", extensionFor("image/gif"))
	assert.Equal(t, ".jpg", extensionFor("image/x-unknown"))
}
