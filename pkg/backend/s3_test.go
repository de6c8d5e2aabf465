package backend

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3Client is an in-memory stand-in for *s3.Client used to test S3
// without a live bucket.
type fakeS3Client struct {
	objects map[string][]byte
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: make(map[string][]byte)}
}

func (f *fakeS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	size := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &size}, nil
}

func (f *fakeS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var contents []types.Object
	for key, data := range f.objects {
		key, size := key, int64(len(data))
		contents = append(contents, types.Object{Key: &key, Size: &size})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func TestS3PutGetRoundTrip(t *testing.T) {
	client := newFakeS3Client()
	b := &S3{Client: client, Bucket: "artstore-test", TotalBytes: 1 << 30}
	ctx := context.Background()

	content := []byte("hello s3 backend")
	n, err := b.Put(ctx, "2026/03/05/object.bin", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("Put() n = %d, want %d", n, len(content))
	}

	rc, err := b.Get(ctx, "2026/03/05/object.bin", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Get() = %q, want %q", got, content)
	}
}

func TestS3CapacityTracksPutAndDelete(t *testing.T) {
	client := newFakeS3Client()
	b := &S3{Client: client, Bucket: "artstore-test", TotalBytes: 100}
	ctx := context.Background()

	if _, err := b.Put(ctx, "a.bin", bytes.NewReader(make([]byte, 30))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	c, err := b.Capacity(ctx)
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if c.UsedBytes != 30 {
		t.Errorf("UsedBytes = %d, want 30", c.UsedBytes)
	}
	if c.FreeBytes != 70 {
		t.Errorf("FreeBytes = %d, want 70", c.FreeBytes)
	}

	if err := b.Delete(ctx, "a.bin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	c, err = b.Capacity(ctx)
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if c.UsedBytes != 0 {
		t.Errorf("UsedBytes after delete = %d, want 0", c.UsedBytes)
	}
}

func TestS3ExistsFalseForMissing(t *testing.T) {
	client := newFakeS3Client()
	b := &S3{Client: client, Bucket: "artstore-test", TotalBytes: 100}

	exists, err := b.Exists(context.Background(), "missing.bin")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true for missing object")
	}
}

func TestS3ReconcileCorrectsDrift(t *testing.T) {
	client := newFakeS3Client()
	client.objects["a.bin"] = make([]byte, 40)
	client.objects["b.bin"] = make([]byte, 60)

	b := &S3{Client: client, Bucket: "artstore-test", TotalBytes: 1000}
	// Simulate drift: counter out of sync with actual bucket contents.
	b.usedBytes.Store(5)

	if err := b.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	c, err := b.Capacity(context.Background())
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if c.UsedBytes != 100 {
		t.Errorf("UsedBytes after Reconcile() = %d, want 100", c.UsedBytes)
	}
}

func TestFormatRange(t *testing.T) {
	tests := []struct {
		rng  ByteRange
		want string
	}{
		{rng: ByteRange{Start: 0, End: 9}, want: "bytes=0-9"},
		{rng: ByteRange{Start: 5, End: -1}, want: "bytes=5-"},
	}
	for _, tt := range tests {
		if got := formatRange(tt.rng); got != tt.want {
			t.Errorf("formatRange(%+v) = %q, want %q", tt.rng, got, tt.want)
		}
	}
}
