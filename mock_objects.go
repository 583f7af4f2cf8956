package fsxpath

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockObjectStore is an in-memory ObjectAPI for tests. Missing objects
// fail with the same error types the S3 service returns.
type MockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket + "/" + key

	// PageSize caps ListObjectsV2 pages (default 1000).
	PageSize int

	// PutError is returned by PutObject when set.
	PutError error

	puts int
}

// NewMockObjectStore creates an empty store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

// Put stores an object directly (test setup).
func (m *MockObjectStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
}

// Get returns a stored object (test verification).
func (m *MockObjectStore) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+key]
	return b, ok
}

// Keys lists the keys of a bucket, sorted.
func (m *MockObjectStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keysLocked(bucket, "")
}

// Puts returns the number of PutObject calls.
func (m *MockObjectStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MockObjectStore) keysLocked(bucket, prefix string) []string {
	var keys []string
	for k := range m.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *MockObjectStore) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(b)))}, nil
}

func (m *MockObjectStore) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), b...))),
		ContentLength: aws.Int64(int64(len(b))),
	}, nil
}

func (m *MockObjectStore) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.PutError != nil {
		return nil, m.PutError
	}

	var data []byte
	if params.Body != nil {
		b, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
		data = b
	}
	if params.ContentLength != nil && *params.ContentLength != int64(len(data)) {
		return nil, errors.New("content length mismatch")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *MockObjectStore) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.keysLocked(aws.ToString(params.Bucket), aws.ToString(params.Prefix))

	after := aws.ToString(params.ContinuationToken)
	if after == "" {
		after = aws.ToString(params.StartAfter)
	}
	if after != "" {
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}

	limit := m.PageSize
	if limit <= 0 {
		limit = 1000
	}
	if params.MaxKeys != nil && int(*params.MaxKeys) < limit {
		limit = int(*params.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > limit {
		keys = keys[:limit]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		size := int64(len(m.objects[aws.ToString(params.Bucket)+"/"+k]))
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(size)})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}
