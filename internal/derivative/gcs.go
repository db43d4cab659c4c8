package derivative

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

var newGCSClientHook = func(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

// GCSBackend stores objects in a single Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

func NewGCSBackend(ctx context.Context, bucket string) (*GCSBackend, error) {
	c, err := newGCSClientHook(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBackend{client: c, bucket: bucket}, nil
}

func (b *GCSBackend) Close() error { return b.client.Close() }

func (b *GCSBackend) Put(ctx context.Context, key string, r io.Reader) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *GCSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	return rc, err
}

func (b *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(obj.Name, "/") {
			continue
		}
		keys = append(keys, obj.Name)
	}
	return keys, nil
}

func (b *GCSBackend) Copy(ctx context.Context, src, dst string) error {
	bkt := b.client.Bucket(b.bucket)
	_, err := bkt.Object(dst).CopierFrom(bkt.Object(src)).Run(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (b *GCSBackend) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}
	bkt := b.client.Bucket(b.bucket)
	for _, k := range keys {
		if err := bkt.Object(k).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return err
		}
	}
	return nil
}
