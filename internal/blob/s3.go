package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	ierr "go-firestore-admin/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ Store = (*S3Store)(nil)

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyId     string
	SecretAccessKey string
	PublicURL       string
}

// S3Store writes objects to an S3 compatible bucket (AWS, Cloudflare R2, MinIO).
// Object URLs are PublicURL joined with the key.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Store(ctx context.Context, cnf S3Config) (*S3Store, error) {
	if cnf.Bucket == "" || cnf.PublicURL == "" {
		return nil, fmt.Errorf("s3 store: bucket and public url are required")
	}

	region := cnf.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cnf.AccessKeyId != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cnf.AccessKeyId, cnf.SecretAccessKey, ""),
		))
	}

	awsCnf, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCnf, func(o *s3.Options) {
		if cnf.Endpoint != "" {
			o.BaseEndpoint = aws.String(cnf.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:    client,
		bucket:    cnf.Bucket,
		publicURL: strings.TrimRight(cnf.PublicURL, "/"),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, onProgress func(int64)) (string, error) {
	// the SDK needs a seekable body with a known length to sign the payload
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          &progressReadSeeker{ReadSeeker: bytes.NewReader(data), onProgress: onProgress},
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	return s.publicURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, rawURL string) error {
	key, err := s.objectKey(rawURL)
	if err != nil {
		return &ierr.StorageError{Op: "delete", Key: rawURL, Err: err}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var noSuchKey *types.NoSuchKey
	if err != nil && !errors.As(err, &noSuchKey) {
		return &ierr.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) objectKey(raw string) (string, error) {
	if strings.HasPrefix(raw, s.publicURL+"/") {
		return strings.TrimPrefix(raw, s.publicURL+"/"), nil
	}
	if !strings.Contains(raw, "://") && raw != "" {
		return raw, nil
	}
	return "", fmt.Errorf("not an object url of this bucket")
}

// progressReadSeeker reports the read position after every read. Seeking rewinds the
// reported position too, so a body the SDK re-reads restarts its count.
type progressReadSeeker struct {
	io.ReadSeeker
	pos        int64
	onProgress func(int64)
}

func (p *progressReadSeeker) Read(b []byte) (int, error) {
	n, err := p.ReadSeeker.Read(b)
	p.pos += int64(n)
	if n > 0 && p.onProgress != nil {
		p.onProgress(p.pos)
	}
	return n, err
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.ReadSeeker.Seek(offset, whence)
	if err == nil {
		p.pos = pos
	}
	return pos, err
}
