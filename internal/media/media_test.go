package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	apperrors "github.com/jafarshop/storefront/pkg/errors"
)

func pngOfWidth(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareDownscalesWideImages(t *testing.T) {
	out, w, h, err := Prepare(bytes.NewReader(pngOfWidth(t, 2400, 600)), 10<<20)
	require.NoError(t, err)
	assert.Equal(t, MaxWidth, w)
	assert.Equal(t, 300, h)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, MaxWidth, decoded.Bounds().Dx())
}

func TestPrepareKeepsSmallImages(t *testing.T) {
	raw := pngOfWidth(t, 100, 50)
	out, w, _, err := Prepare(bytes.NewReader(raw), 10<<20)
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, raw, out)
}

func TestPrepareRejectsOversizeAndGarbage(t *testing.T) {
	_, _, _, err := Prepare(bytes.NewReader(pngOfWidth(t, 100, 100)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, _, err = Prepare(bytes.NewReader([]byte("not an image")), 1024)
	var validation *apperrors.ErrValidation
	assert.True(t, errors.As(err, &validation))
}

func TestUnconfiguredStore(t *testing.T) {
	store, err := New(config.CloudinaryConfig{}, 1024, zap.NewNop())
	require.NoError(t, err)
	_, err = store.Upload(context.Background(), bytes.NewReader(nil), "x.png")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
