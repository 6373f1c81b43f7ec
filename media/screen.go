package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"
)

// CaptureFunc grabs one JPEG frame
type CaptureFunc func(ctx context.Context) ([]byte, error)

// CommandCapture runs a command and returns its stdout as the frame.
func CommandCapture(name string, args ...string) CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("%s: empty capture", name)
		}
		return stdout.Bytes(), nil
	}
}

// DefaultCapture uses screencapture on macOS and ImageMagick elsewhere.
func DefaultCapture() CaptureFunc {
	if runtime.GOOS == "darwin" {
		return CommandCapture("screencapture", "-x", "-t", "jpg", "/dev/stdout")
	}
	return CommandCapture("import", "-window", "root", "jpeg:-")
}

// Screenshotter captures the screen on a fixed interval
type Screenshotter struct {
	Capture  CaptureFunc
	Interval time.Duration
	Logger   *slog.Logger
}

// Run captures a frame every Interval and hands it to fn until ctx is done
// or fn fails. Capture failures are logged and skipped.
func (s *Screenshotter) Run(ctx context.Context, fn func(jpeg []byte) error) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	capture := s.Capture
	if capture == nil {
		capture = DefaultCapture()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame, err := capture(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("📷 screen capture failed", "error", err)
				continue
			}
			if err := fn(frame); err != nil {
				return err
			}
		}
	}
}
