package resource

import (
	"context"
	"io"
)

// RateLimitedWriter wraps an io.Writer with rate limiting.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		w:   w,
		rc:  rc,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (n int, err error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// ReaderAt is random-access input whose reads can be canceled.
type ReaderAt interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// RateLimitedReaderAt wraps a ReaderAt with rate limiting.
type RateLimitedReaderAt struct {
	r  ReaderAt
	rc *Controller
}

// NewRateLimitedReaderAt creates a new RateLimitedReaderAt.
func NewRateLimitedReaderAt(r ReaderAt, rc *Controller) *RateLimitedReaderAt {
	return &RateLimitedReaderAt{r: r, rc: rc}
}

func (r *RateLimitedReaderAt) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := r.rc.AcquireIO(ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.ReadAt(ctx, p, off)
}
