// Package objectstore wraps blob storage backends behind a small interface,
// used by pkg/archive to ship snapshot directory blocks off-device and read
// them back during a restore-from-archive (SPEC_FULL.md §4.12). Grounded on
// the teacher's pkg/objectstore, trimmed to the two operations an archiver
// actually drives.
package objectstore

import "io"

// ObjectStore is the blob-storage contract the archiver and its decorators
// implement. Archiving never lists or deletes objects, so neither operation
// is part of this interface.
type ObjectStore interface {
	PutObject(bucket, key string, data io.ReadSeeker) error
	GetObject(bucket, key string) (io.ReadCloser, error)
}
