// Package screen provides visual context capture: screenshot acquisition
// with retry, overlay-hiding guards and downscaling for transport.
package screen

import (
	"context"
	"fmt"
	"time"

	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/metrics"
)

const (
	captureMaxAttempts = 3
	captureRetryBase   = 200 * time.Millisecond
)

// Capturer acquires one screenshot as PNG bytes.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context) ([]byte, error)

// Capture implements Capturer.
func (f CapturerFunc) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// CaptureWithRetry attempts a capture up to three times with exponential
// backoff (200ms, 400ms) between attempts.
func CaptureWithRetry(ctx context.Context, c Capturer) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < captureMaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordScreenshotRetry()
			backoff := captureRetryBase * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		img, err := c.Capture(ctx)
		if err == nil {
			return img, nil
		}
		lastErr = err
		logger.Warn("screenshot capture failed",
			"attempt", attempt+1,
			"maxAttempts", captureMaxAttempts,
			"error", err)
	}
	return nil, fmt.Errorf("capture failed after %d attempts: %w", captureMaxAttempts, lastErr)
}

// Hider hides and restores overlay surfaces around a capture so the
// assistant's own window never appears in the screenshot.
type Hider interface {
	Hide() error
	Show() error
}

// WithOverlayHidden wraps a capturer so overlay surfaces are hidden for
// the duration of each capture. A nil hider returns c unchanged.
func WithOverlayHidden(c Capturer, h Hider) Capturer {
	if h == nil {
		return c
	}
	return CapturerFunc(func(ctx context.Context) ([]byte, error) {
		if err := h.Hide(); err != nil {
			logger.Warn("hiding overlay before capture", "error", err)
		}
		defer func() {
			if err := h.Show(); err != nil {
				logger.Warn("restoring overlay after capture", "error", err)
			}
		}()
		return c.Capture(ctx)
	})
}
