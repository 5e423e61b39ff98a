package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	ierr "go-firestore-admin/internal/errors"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const (
	firebaseDownloadHost   = "https://firebasestorage.googleapis.com"
	firebaseTokensMetadata = "firebaseStorageDownloadTokens"
)

var _ Store = (*FirebaseStore)(nil)

// FirebaseStore writes objects into a Firebase Storage bucket and returns token download URLs,
// the same URLs the Firebase web SDK hands out.
type FirebaseStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewFirebaseStore(bucket *storage.BucketHandle, bucketName string) *FirebaseStore {
	return &FirebaseStore{
		bucket:     bucket,
		bucketName: bucketName,
	}
}

func (s *FirebaseStore) Put(ctx context.Context, key string, r io.Reader, onProgress func(int64)) (string, error) {
	// cancelling the context is the only way to abort a storage writer
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	token := uuid.NewString()
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	w.Metadata = map[string]string{firebaseTokensMetadata: token}
	if onProgress != nil {
		w.ProgressFunc = onProgress
	}

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	if err := w.Close(); err != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	return DownloadURL(s.bucketName, key, token), nil
}

func (s *FirebaseStore) Delete(ctx context.Context, rawURL string) error {
	key, err := ObjectKeyFromURL(rawURL)
	if err != nil {
		return &ierr.StorageError{Op: "delete", Key: rawURL, Err: err}
	}

	err = s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return &ierr.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func DownloadURL(bucket, key, token string) string {
	// PathEscape encodes the whole key as one segment, slashes included
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s", firebaseDownloadHost, bucket, url.PathEscape(key), url.QueryEscape(token))
}

// ObjectKeyFromURL accepts a Firebase download URL, a gs://bucket/key URL or a bare object key.
func ObjectKeyFromURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}

	if !strings.Contains(raw, "://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return "", fmt.Errorf("no object path in url")
		}
		return key, nil
	case "http", "https":
		// the key is percent-encoded as a single segment; Path holds it decoded
		idx := strings.Index(u.Path, "/o/")
		if idx == -1 || idx+3 == len(u.Path) {
			return "", fmt.Errorf("not a firebase storage download url")
		}
		return u.Path[idx+3:], nil
	}

	return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
}
