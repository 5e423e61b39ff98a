package blob

import (
	"context"
	"io"
)

const progressBuffer = 16

// Upload is a running upload. Progress percentages are published on a buffered channel
// that never blocks the transfer; slow readers miss intermediate values.
type Upload struct {
	progress chan float64
	done     chan struct{}
	url      string
	err      error
}

// StartUpload begins writing r to store under key. size is the expected byte count and is
// only used for percentages; a non-positive size reports 100 on completion alone.
func StartUpload(ctx context.Context, store Store, key string, r io.Reader, size int64) *Upload {
	u := &Upload{
		progress: make(chan float64, progressBuffer),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(u.done)
		defer close(u.progress)

		last := 0.0
		u.url, u.err = store.Put(ctx, key, r, func(written int64) {
			if size <= 0 {
				return
			}
			pct := float64(written) * 100 / float64(size)
			if pct > 100 {
				pct = 100
			}
			if pct <= last {
				return
			}
			last = pct
			u.report(pct)
		})

		if u.err == nil && last < 100 {
			u.report(100)
		}
	}()

	return u
}

func (u *Upload) report(pct float64) {
	select {
	case u.progress <- pct:
	default:
	}
}

// Progress is closed once the upload finished, successfully or not.
func (u *Upload) Progress() <-chan float64 {
	return u.progress
}

func (u *Upload) Done() <-chan struct{} {
	return u.done
}

// Wait blocks until the upload finished and returns the object's URL.
func (u *Upload) Wait() (string, error) {
	<-u.done
	return u.url, u.err
}
