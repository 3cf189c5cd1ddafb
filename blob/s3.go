package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of *s3.Client this package exercises, narrowed
// so tests can supply a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store persists blobs to an S3 bucket, keyed by content hash under
// a fixed prefix.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store returns a Store backed by the given bucket. client is
// typically an *s3.Client built from an aws.Config loaded at startup.
func NewS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(hash string) string {
	if s.prefix == "" {
		return hash
	}
	return s.prefix + "/" + hash
}

func (s *S3Store) Put(ctx context.Context, r io.Reader) (Ref, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return Ref{}, fmt.Errorf("blob: read upload: %w", err)
	}
	sum := sha256.Sum256(buf)
	hash := hex.EncodeToString(sum[:])
	key := s.key(hash)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return Ref{}, fmt.Errorf("blob: put %q: %w", key, err)
	}

	return Ref{Hash: hash, Locator: s.bucket + "/" + key, SizeBytes: int64(len(buf))}, nil
}

func (s *S3Store) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref.Hash)),
	})
	if err != nil {
		return nil, fmt.Errorf("blob: get %q: %w", ref.Locator, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, ref Ref) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref.Hash)),
	})
	if err != nil {
		return fmt.Errorf("blob: delete %q: %w", ref.Locator, err)
	}
	return nil
}
