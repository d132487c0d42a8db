package objectstore

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipObjectStore decorates an ObjectStore, gzip-compressing every archived
// snapshot on the way into S3 and decompressing it back out on restore.
// Snapshot directory blocks compress well (mostly empty, zeroed directory
// entries), so
// this sits directly in front of S3ObjectStore in every archiver built by
// pkg/archive.
type GzipObjectStore struct {
	ObjectStore
}

func (os *GzipObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := io.Copy(w, data); err != nil {
		return fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	return os.ObjectStore.PutObject(bucket, key, bytes.NewReader(b.Bytes()))
}

// gzipReadCloser closes both the gzip reader and the underlying object
// body it wraps; closing only the gzip.Reader would leak the S3 response
// body's connection.
type gzipReadCloser struct {
	body io.ReadCloser
	gz   *gzip.Reader
}

func (grc *gzipReadCloser) Read(data []byte) (int, error) {
	return grc.gz.Read(data)
}

func (grc *gzipReadCloser) Close() error {
	gzErr := grc.gz.Close()
	bodyErr := grc.body.Close()
	if gzErr != nil {
		return gzErr
	}
	return bodyErr
}

func (os *GzipObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	body, err := os.ObjectStore.GetObject(bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetching archived snapshot: %w", err)
	}
	gz, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	return &gzipReadCloser{body: body, gz: gz}, nil
}
