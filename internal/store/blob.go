package store

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Blob writes documents into a gocloud bucket.
type Blob struct {
	bucket *blob.Bucket
	url    string
}

// OpenBlob opens the bucket behind a gocloud URL such as file:///srv/outbox.
func OpenBlob(ctx context.Context, bucketURL string) (*Blob, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &Blob{bucket: bucket, url: bucketURL}, nil
}

// NewBlob wraps an already opened bucket.
func NewBlob(bucket *blob.Bucket, label string) *Blob {
	return &Blob{bucket: bucket, url: label}
}

func (b *Blob) Put(ctx context.Context, name string, data []byte) error {
	key := cleanName(name)
	if err := b.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/xml"}); err != nil {
		return fmt.Errorf("write %s: %w", b.Location(name), err)
	}
	return nil
}

func (b *Blob) Location(name string) string {
	return b.url + "#" + cleanName(name)
}

func (b *Blob) Close() error {
	return b.bucket.Close()
}
