package image_test

import (
	"bytes"
	stdimage "image"
	"image/color"
	imgdraw "image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	assetimage "github.com/USSTM/asset-backend/internal/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	imgdraw.Draw(img, img.Bounds(), &stdimage.Uniform{color.RGBA{B: 255, A: 255}}, stdimage.Point{}, imgdraw.Src)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// fully transparent pad
func createTransparentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessSignature_SmallJPEGKeepsSize(t *testing.T) {
	data := createTestJPEG(t, 400, 150)
	sig, err := assetimage.ProcessSignature(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, "image/png", sig.ContentType)
	assert.Equal(t, "image/jpeg", sig.SourceType)
	assert.Equal(t, 400, sig.Width)
	assert.Equal(t, 150, sig.Height)

	decoded, format, err := stdimage.Decode(bytes.NewReader(sig.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 400, decoded.Bounds().Dx())
}

func TestProcessSignature_LargeImageFitsBox(t *testing.T) {
	data := createTestJPEG(t, 1600, 400)
	sig, err := assetimage.ProcessSignature(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, assetimage.SignatureWidth, sig.Width)
	assert.Equal(t, 200, sig.Height)
}

func TestProcessSignature_FlattensTransparency(t *testing.T) {
	data := createTransparentPNG(t, 20, 10)
	sig, err := assetimage.ProcessSignature(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	decoded, _, err := stdimage.Decode(bytes.NewReader(sig.Data))
	require.NoError(t, err)
	r, g, b, a := decoded.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestProcessSignature_Rejects(t *testing.T) {
	small := createTestJPEG(t, 10, 10)
	huge := createTestJPEG(t, 4097, 10)

	tests := []struct {
		name    string
		data    []byte
		size    int64
		message string
	}{
		{"declared size too big", small, 3 * 1024 * 1024, "file size"},
		{"not an image", []byte("hello, this is plain text"), 25, "only jpeg and png"},
		{"empty", nil, 0, "empty"},
		{"dimensions", huge, int64(len(huge)), "dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assetimage.ProcessSignature(bytes.NewReader(tt.data), tt.size)
			require.Error(t, err)
			assert.ErrorIs(t, err, assetimage.ErrInvalidImage)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
