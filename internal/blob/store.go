package blob

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	ImagesPrefix = "images/"

	defaultContentType = "application/octet-stream"
)

// Store holds binary objects addressed by key and hands out stable retrieval URLs.
// Failures are returned as *errors.StorageError.
type Store interface {
	// Put writes r under key. onProgress, when non-nil, receives the number of bytes written so far.
	Put(ctx context.Context, key string, r io.Reader, onProgress func(written int64)) (string, error)
	// Delete removes the object behind url. A missing object is not an error.
	Delete(ctx context.Context, url string) error
}

// ImageKey namespaces an uploaded file under images/ with a random segment so that
// uploads sharing a filename never overwrite each other. The original filename is kept
// as the last path element.
func ImageKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return ImagesPrefix + uuid.NewString() + "/" + base
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return defaultContentType
}

// progressReader reports the number of bytes read so far after every read.
type progressReader struct {
	r          io.Reader
	pos        int64
	onProgress func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.pos += int64(n)
	if n > 0 && p.onProgress != nil {
		p.onProgress(p.pos)
	}
	return n, err
}
