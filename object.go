package fsxpath

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the part of the S3 API object paths use. *s3.Client
// satisfies it.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ObjectPath is an S3 object or prefix. A key that is empty or ends in
// "/" names a directory-like prefix; any other key names one object.
type ObjectPath struct {
	api    ObjectAPI
	bucket string
	key    string
}

// NewObjectPath binds bucket and key to an S3 API.
func NewObjectPath(api ObjectAPI, bucket, key string) ObjectPath {
	return ObjectPath{api: api, bucket: bucket, key: strings.TrimPrefix(key, "/")}
}

// ParseObjectURI splits s3://bucket/key.
func ParseObjectURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3 uri: %q", ErrInvalidPath, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: missing bucket: %q", ErrInvalidPath, uri)
	}
	return bucket, key, nil
}

func (o ObjectPath) location() {}

// URI renders s3://bucket/key.
func (o ObjectPath) URI() string {
	return "s3://" + o.bucket + "/" + o.key
}

func (o ObjectPath) String() string {
	return o.URI()
}

// Bucket is the bucket name.
func (o ObjectPath) Bucket() string {
	return o.bucket
}

// Key is the object key or prefix.
func (o ObjectPath) Key() string {
	return o.key
}

// IsDir reports whether the path is a prefix rather than an object.
func (o ObjectPath) IsDir() bool {
	return o.key == "" || strings.HasSuffix(o.key, "/")
}

// Name is the last key segment.
func (o ObjectPath) Name() string {
	k := strings.TrimSuffix(o.key, "/")
	if i := strings.LastIndexByte(k, '/'); i >= 0 {
		return k[i+1:]
	}
	return k
}

// Join appends slash separated segments. The result names an object.
func (o ObjectPath) Join(elem ...string) ObjectPath {
	key := o.key
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e == "" {
			continue
		}
		if key != "" && !strings.HasSuffix(key, "/") {
			key += "/"
		}
		key += e
	}
	return ObjectPath{api: o.api, bucket: o.bucket, key: key}
}

// asDir returns the path as a prefix.
func (o ObjectPath) asDir() ObjectPath {
	if o.IsDir() {
		return o
	}
	return ObjectPath{api: o.api, bucket: o.bucket, key: o.key + "/"}
}

func (o ObjectPath) ioError(op string, err error) error {
	return wrapPathError(op, o.URI(), err)
}

// Exists reports whether the object exists. For prefixes it reports
// whether any object lives below the prefix.
func (o ObjectPath) Exists(ctx context.Context) (bool, error) {
	if o.IsDir() {
		out, err := o.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(o.bucket),
			Prefix:  aws.String(o.key),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return false, o.ioError("list", err)
		}
		return len(out.Contents) > 0, nil
	}

	_, err := o.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err == nil {
		return true, nil
	}
	if isObjectNotFound(err) {
		return false, nil
	}
	return false, o.ioError("head", err)
}

func isObjectNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// Open streams the object body. The caller closes it.
func (o ObjectPath) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, o.ioError("get", err)
	}
	return out.Body, nil
}

// ReadBytes reads the whole object.
func (o ObjectPath) ReadBytes(ctx context.Context) ([]byte, error) {
	body, err := o.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// Put uploads size bytes from body, replacing any existing object.
func (o ObjectPath) Put(ctx context.Context, body io.ReadSeeker, size int64) error {
	_, err := o.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(o.bucket),
		Key:           aws.String(o.key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return o.ioError("put", err)
	}
	return nil
}

// WriteBytes uploads data as the object content.
func (o ObjectPath) WriteBytes(ctx context.Context, data []byte) error {
	return o.Put(ctx, bytes.NewReader(data), int64(len(data)))
}

// ListKeys returns every key below the prefix, in listing order.
func (o ObjectPath) ListKeys(ctx context.Context) ([]string, error) {
	prefix := o.asDir().key
	paginator := s3.NewListObjectsV2Paginator(o.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, o.ioError("list", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Hash digests the first nbytes of the object (all of it when nbytes is 0).
func (o ObjectPath) Hash(ctx context.Context, algo HashAlgorithm, nbytes int64, chunkSize int) (string, error) {
	return HashFile(func() (io.ReadCloser, error) { return o.Open(ctx) }, algo, nbytes, chunkSize)
}
