package blob

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for common object store failures.
// Use errors.Is to check them through wrapped errors.
var (
	// ErrObjectNotFound indicates the requested object does not exist.
	ErrObjectNotFound = errors.New("s3: object not found")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("s3: bucket not found")

	// ErrAccessDenied indicates the credentials lack permission.
	ErrAccessDenied = errors.New("s3: access denied")

	// ErrInvalidObjectURL indicates a URL that does not address an object in
	// any layout the platform has produced.
	ErrInvalidObjectURL = errors.New("s3: invalid object url")
)

// Error wraps an object store operation failure with its context.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps SDK errors onto package sentinels and wraps them with the
// operation context.
func classify(op, bucket, key string, err error) error {
	var (
		notFound  *types.NotFound
		noSuchKey *types.NoSuchKey
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		err = ErrObjectNotFound
	default:
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchKey":
				err = ErrObjectNotFound
			case "NoSuchBucket":
				err = ErrBucketNotFound
			case "AccessDenied":
				err = ErrAccessDenied
			}
		}
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}
