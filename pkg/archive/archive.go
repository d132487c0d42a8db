// Package archive ships committed snapshot directory blocks to S3 as the
// filesystem's optional post-commit hook (SPEC_FULL.md §4.12). Grounded on
// the teacher's pkg/objectstore, gzip-compressing every archived block the
// way GzipObjectStore does for other object kinds in that package.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/weberc2/shadowfs/pkg/objectstore"
)

// S3Archiver implements sfs.Archiver by uploading each archived snapshot as
// a gzip-compressed object keyed by disk ID and slot number.
type S3Archiver struct {
	Store  objectstore.ObjectStore
	Bucket string
}

// NewS3Archiver builds an archiver against the named bucket using the
// default AWS session and region resolution.
func NewS3Archiver(bucket string) (*S3Archiver, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	store := &objectstore.GzipObjectStore{
		ObjectStore: &objectstore.S3ObjectStore{Client: s3.New(sess)},
	}
	return &S3Archiver{Store: store, Bucket: bucket}, nil
}

// ArchiveSnapshot uploads dir under a key namespaced by disk and slot. Its
// errors do not fail the caller's commit; callers treat
// archiving as best-effort (spec.md §7 policy on reported-not-retried
// errors extended to this optional hook in SPEC_FULL.md §4.12).
func (a *S3Archiver) ArchiveSnapshot(ctx context.Context, diskID string, slot uint32, dir []byte) error {
	key := snapshotKey(diskID, slot)
	if err := a.Store.PutObject(a.Bucket, key, bytes.NewReader(dir)); err != nil {
		return fmt.Errorf("archiving snapshot `%s`: %w", key, err)
	}
	return nil
}

// FetchSnapshot downloads a previously archived directory block, for
// restoring a disk from an off-device backup rather than a local shadow
// slot. The caller is responsible for closing the returned reader.
func (a *S3Archiver) FetchSnapshot(ctx context.Context, diskID string, slot uint32) (io.ReadCloser, error) {
	key := snapshotKey(diskID, slot)
	body, err := a.Store.GetObject(a.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetching archived snapshot `%s`: %w", key, err)
	}
	return body, nil
}

func snapshotKey(diskID string, slot uint32) string {
	return fmt.Sprintf("%s/slot-%d", diskID, slot)
}
