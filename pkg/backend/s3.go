package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Client is the subset of *s3.Client this package depends on, so tests
// can substitute a fake.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is an S3-compatible (AWS S3 or MinIO) Backend. Since object storage has
// no statvfs equivalent, capacity is tracked via an in-memory counter
// updated on every Put/Delete; Reconcile resets it from a full bucket
// listing to correct for drift (§4.10). The Storage Element does not call
// Reconcile on a timer of its own.
type S3 struct {
	Client     s3Client
	Bucket     string
	TotalBytes int64 // configured quota; S3 itself has no hard capacity

	usedBytes atomic.Int64
}

// NewS3 creates an S3 backend. totalBytes is the configured quota for this
// Storage Element (S3 buckets have no intrinsic capacity ceiling).
func NewS3(client *s3.Client, bucket string, totalBytes int64) *S3 {
	return &S3{Client: client, Bucket: bucket, TotalBytes: totalBytes}
}

func (s *S3) Put(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("buffering object for upload: %w", err)
	}

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(relPath),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, fmt.Errorf("putting object %s: %w", relPath, err)
	}

	s.usedBytes.Add(int64(len(data)))
	return int64(len(data)), nil
}

func (s *S3) Get(ctx context.Context, relPath string, rng *ByteRange) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(relPath),
	}
	if rng != nil {
		input.Range = aws.String(formatRange(*rng))
	}

	out, err := s.Client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", relPath, err)
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, relPath string) error {
	size, statErr := s.objectSize(ctx, relPath)

	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(relPath),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", relPath, err)
	}

	if statErr == nil {
		s.usedBytes.Add(-size)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(relPath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3) objectSize(ctx context.Context, relPath string) (int64, error) {
	out, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(relPath),
	})
	if err != nil {
		return 0, err
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

// Capacity reports the tracked used-bytes counter against TotalBytes. Call
// Reconcile periodically to correct for drift (§4.10).
func (s *S3) Capacity(_ context.Context) (Capacity, error) {
	used := s.usedBytes.Load()
	return Capacity{
		TotalBytes: s.TotalBytes,
		UsedBytes:  used,
		FreeBytes:  s.TotalBytes - used,
	}, nil
}

// Reconcile lists the bucket in full and resets the used-bytes counter to
// the observed total, correcting for drift from missed Put/Delete
// accounting (crashes, out-of-band object changes). Intended to be called
// on a slow periodic timer, not per request.
func (s *S3) Reconcile(ctx context.Context) error {
	var total int64
	var token *string

	for {
		out, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.Bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("listing bucket %s: %w", s.Bucket, err)
		}

		for _, obj := range out.Contents {
			if obj.Size != nil {
				total += *obj.Size
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	s.usedBytes.Store(total)
	return nil
}

func formatRange(rng ByteRange) string {
	if rng.End < 0 {
		return fmt.Sprintf("bytes=%d-", rng.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)
}
