package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// objectIO is the slice of a GCS bucket the store needs.
type objectIO interface {
	NewWriter(ctx context.Context, name string) io.WriteCloser
	NewReader(ctx context.Context, name string) (io.ReadCloser, error)
}

type bucketIO struct {
	bucket *storage.BucketHandle
}

func (b bucketIO) NewWriter(ctx context.Context, name string) io.WriteCloser {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	return w
}

func (b bucketIO) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GCSStore keeps the snapshot in one object under a prefix. The object
// becomes visible atomically when its writer closes.
type GCSStore struct {
	objects objectIO
	bucket  string
	prefix  string
}

// NewGCSStore creates a bucket-backed store.
func NewGCSStore(client *storage.Client, bucket, prefix string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{
		objects: bucketIO{bucket: client.Bucket(bucket)},
		bucket:  bucket,
		prefix:  prefix,
	}, nil
}

func (s *GCSStore) object(name string) string {
	return path.Join(s.prefix, name+".txt")
}

// Save uploads the whole snapshot as a single object.
func (s *GCSStore) Save(ctx context.Context, snap Snapshot) error {
	object := s.object(snapshotName)
	writer := s.objects.NewWriter(ctx, object)
	if err := encodeSnapshot(writer, snap); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write gs://%s/%s: %w (close writer: %v)", s.bucket, object, err, closeErr)
		}
		return fmt.Errorf("write gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", s.bucket, object, err)
	}
	return nil
}

// Load downloads the snapshot object, falling back to the older
// object-per-list layout. Missing objects load as empty lists.
func (s *GCSStore) Load(ctx context.Context) (Snapshot, error) {
	object := s.object(snapshotName)
	reader, err := s.objects.NewReader(ctx, object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return s.loadLegacy(ctx)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("open gs://%s/%s: %w", s.bucket, object, err)
	}
	defer reader.Close()
	snap, err := decodeSnapshot(reader)
	if err != nil {
		return Snapshot{}, fmt.Errorf("gs://%s/%s: %w", s.bucket, object, err)
	}
	return snap, nil
}

func (s *GCSStore) loadLegacy(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	for _, list := range snapshotLists(&snap) {
		entries, err := s.getLegacy(ctx, list.name)
		if err != nil {
			return Snapshot{}, err
		}
		*list.entries = entries
	}
	return snap, nil
}

func (s *GCSStore) getLegacy(ctx context.Context, name string) ([]string, error) {
	object := s.object(name)
	reader, err := s.objects.NewReader(ctx, object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, object, err)
	}
	defer reader.Close()
	entries, err := readList(reader)
	if err != nil {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, object, err)
	}
	return entries, nil
}
