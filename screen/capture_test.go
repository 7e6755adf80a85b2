package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureWithRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	c := CapturerFunc(func(context.Context) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return []byte{0x89}, nil
	})

	img, err := CaptureWithRetry(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89}, img)
	assert.Equal(t, 3, attempts)
}

func TestCaptureWithRetry_GivesUp(t *testing.T) {
	attempts := 0
	c := CapturerFunc(func(context.Context) ([]byte, error) {
		attempts++
		return nil, errors.New("persistent failure")
	})

	_, err := CaptureWithRetry(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent failure")
	assert.Equal(t, 3, attempts)
}

func TestCaptureWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := CapturerFunc(func(context.Context) ([]byte, error) {
		cancel()
		return nil, errors.New("fail")
	})

	_, err := CaptureWithRetry(ctx, c)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeHider struct {
	hidden  bool
	history []string
}

func (h *fakeHider) Hide() error {
	h.hidden = true
	h.history = append(h.history, "hide")
	return nil
}

func (h *fakeHider) Show() error {
	h.hidden = false
	h.history = append(h.history, "show")
	return nil
}

func TestWithOverlayHidden(t *testing.T) {
	hider := &fakeHider{}
	var hiddenDuringCapture bool
	c := WithOverlayHidden(CapturerFunc(func(context.Context) ([]byte, error) {
		hiddenDuringCapture = hider.hidden
		return []byte{1}, nil
	}), hider)

	_, err := c.Capture(context.Background())
	require.NoError(t, err)

	assert.True(t, hiddenDuringCapture)
	assert.False(t, hider.hidden)
	assert.Equal(t, []string{"hide", "show"}, hider.history)
}

func TestWithOverlayHidden_NilHider(t *testing.T) {
	base := CapturerFunc(func(context.Context) ([]byte, error) { return nil, nil })
	assert.NotNil(t, WithOverlayHidden(base, nil))
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownscale_WideImageIsScaled(t *testing.T) {
	data := encodeTestPNG(t, 4000, 2000)

	out, err := Downscale(data, 1000)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1000, decoded.Bounds().Dx())
	assert.Equal(t, 500, decoded.Bounds().Dy())
}

func TestDownscale_SmallImageUnchanged(t *testing.T) {
	data := encodeTestPNG(t, 800, 600)

	out, err := Downscale(data, 1000)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDownscale_InvalidData(t *testing.T) {
	_, err := Downscale([]byte("not a png"), 100)
	assert.Error(t, err)
}
