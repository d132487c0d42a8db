package objectstore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ObjectNotFoundErr indicates GetObject was called against a bucket/key
// pair with no archived snapshot, e.g. a restore against a slot the
// archiver never uploaded (pruned bucket, disabled archiving at commit
// time, etc).
type ObjectNotFoundErr struct {
	Bucket, Key string
}

func (e *ObjectNotFoundErr) Error() string {
	return fmt.Sprintf("archived object not found: bucket `%s`, key `%s`", e.Bucket, e.Key)
}

// S3ObjectStore stores archived snapshot blocks in S3. Every call is logged
// at debug level with the bucket and key, since archiving runs as a
// best-effort hook after a successful commit (SPEC_FULL.md §4.12) and its
// own errors don't otherwise surface to an operator.
type S3ObjectStore struct {
	Client *s3.S3
	Logger *slog.Logger
}

func (os *S3ObjectStore) logger() *slog.Logger {
	if os.Logger == nil {
		return slog.Default()
	}
	return os.Logger
}

func (os *S3ObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	os.logger().Debug("archive upload", "bucket", bucket, "key", key)
	if _, err := os.Client.PutObject(&s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   data,
	}); err != nil {
		return fmt.Errorf(
			"uploading snapshot to bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}

func (os *S3ObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	os.logger().Debug("archive fetch", "bucket", bucket, "key", key)
	rsp, err := os.Client.GetObject(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf(
			"fetching snapshot from bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return rsp.Body, nil
}
