package fsxpath

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mountMock mounts name on a fresh mock session.
func mountMock(t *testing.T, backend *MockSMBBackend, name string) SMBShare {
	t.Helper()
	sh, err := NewMockSMBSession(backend).Mount(name)
	if err != nil {
		t.Fatalf("Mount(%q) error = %v", name, err)
	}
	return sh
}

func TestMockSession_Mount(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddShare("Data")

	s := NewMockSMBSession(backend)
	if _, err := s.Mount("DATA"); err != nil {
		t.Errorf("Mount() is case sensitive: %v", err)
	}
	if _, err := s.Mount("missing"); err == nil {
		t.Error("Mount() of unknown share succeeded")
	}

	names, err := s.ListSharenames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Data" || names[1] != DefaultShare {
		t.Errorf("ListSharenames() = %v", names)
	}

	if err := s.Logoff(); err != nil {
		t.Fatal(err)
	}
	if err := s.Logoff(); err != nil {
		t.Errorf("second Logoff() error = %v", err)
	}
	if _, err := s.Mount("data"); err == nil {
		t.Error("Mount() after Logoff() succeeded")
	}
	if got := backend.CountOperations("logoff"); got != 1 {
		t.Errorf("logoff recorded %d times, want 1", got)
	}
}

func TestMockShare_OpenFile(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/exists.txt", []byte("old"), 0o644)
	sh := mountMock(t, backend, "share")

	tests := []struct {
		name    string
		path    string
		flag    int
		wantErr error
	}{
		{"read existing", "exists.txt", os.O_RDONLY, nil},
		{"read missing", "missing.txt", os.O_RDONLY, fs.ErrNotExist},
		{"create", "new.txt", os.O_RDWR | os.O_CREATE, nil},
		{"exclusive on existing", "exists.txt", os.O_RDWR | os.O_CREATE | os.O_EXCL, fs.ErrExist},
		{"create without parent", `no\parent.txt`, os.O_RDWR | os.O_CREATE, fs.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := sh.OpenFile(tt.path, tt.flag, 0o644)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("OpenFile() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenFile() error = %v", err)
			}
			f.Close()
		})
	}

	if !backend.FileExists(`share\NEW.txt`) {
		t.Error("created file not visible in backend")
	}
}

func TestMockFile_ReadWriteSeek(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/f.bin", []byte("hello"), 0o644)
	sh := mountMock(t, backend, "share")

	ro, err := sh.OpenFile("f.bin", os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ro.Write([]byte("x")); err == nil {
		t.Error("Write() on read-only handle succeeded")
	}
	ro.Close()

	f, err := sh.OpenFile("f.bin", os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if pos, err := f.Seek(0, io.SeekEnd); err != nil || pos != 5 {
		t.Fatalf("Seek(end) = %d, %v", pos, err)
	}
	if _, err := f.Write([]byte(" world")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(-3, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 8)
	n, err := f.Read(buf)
	if err != nil || string(buf[:n]) != "rld" {
		t.Errorf("Read() = %q, %v", buf[:n], err)
	}
	if _, err := f.Read(buf); err != io.EOF {
		t.Errorf("Read() at end error = %v, want EOF", err)
	}
	if _, err := f.Seek(-1, io.SeekStart); err == nil {
		t.Error("Seek() to negative offset succeeded")
	}

	if got, _ := backend.GetFile("share/f.bin"); string(got) != "hello world" {
		t.Errorf("content = %q", got)
	}
}

func TestMockFile_Closed(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/a", []byte("a"), 0o644)
	sh := mountMock(t, backend, "share")

	f, err := sh.OpenFile("a", os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("double Close() error = %v", err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read() after Close() error = %v", err)
	}
	if _, err := f.Stat(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Stat() after Close() error = %v", err)
	}
	if got := backend.CountOperations("close"); got != 1 {
		t.Errorf("close recorded %d times, want 1", got)
	}
}

func TestMockShare_DirectoryOps(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/dir/b.txt", nil, 0o644)
	backend.AddFile("share/dir/A.txt", nil, 0o644)
	backend.AddDir("share/dir/sub", 0o755)
	sh := mountMock(t, backend, "share")

	if err := sh.Mkdir("dir", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Mkdir() on existing error = %v", err)
	}
	if err := sh.Mkdir(`x\y`, 0o755); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Mkdir() without parent error = %v", err)
	}
	if err := sh.Remove("dir"); err == nil {
		t.Error("Remove() of non-empty directory succeeded")
	}

	d, err := sh.OpenFile("dir", os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := d.Readdir(-1)
	d.Close()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	if len(names) != 3 || names[0] != "A.txt" || names[2] != "sub" {
		t.Errorf("Readdir() = %v", names)
	}

	if err := sh.Rename("dir", "moved"); err != nil {
		t.Fatal(err)
	}
	if !backend.FileExists("share/moved/sub") || backend.FileExists("share/dir") {
		t.Error("Rename() did not move the subtree")
	}
	fi, err := sh.Stat(`moved\a.TXT`)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Name() != "A.txt" {
		t.Errorf("Stat().Name() = %q, want display case", fi.Name())
	}
}

func TestMockShare_Unmounted(t *testing.T) {
	backend := NewMockSMBBackend()
	sh := mountMock(t, backend, "share")

	if err := sh.Umount(); err != nil {
		t.Fatal(err)
	}
	if err := sh.Umount(); err != nil {
		t.Errorf("second Umount() error = %v", err)
	}
	if _, err := sh.Stat(""); err == nil {
		t.Error("Stat() on unmounted share succeeded")
	}
	if got := backend.CountOperations("umount"); got != 1 {
		t.Errorf("umount recorded %d times, want 1", got)
	}
}

func TestMockBackend_ErrorInjection(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/a.txt", []byte("a"), 0o644)
	backend.AddFile("share/b.txt", []byte("b"), 0o644)
	sh := mountMock(t, backend, "share")

	boom := errors.New("boom")
	backend.SetError("share/a.txt", boom)
	if _, err := sh.Stat("a.txt"); !errors.Is(err, boom) {
		t.Errorf("Stat() error = %v, want injected", err)
	}
	if _, err := sh.Stat("b.txt"); err != nil {
		t.Errorf("Stat() of other path error = %v", err)
	}

	backend.SetOperationError("open", boom)
	if _, err := sh.OpenFile("b.txt", os.O_RDONLY, 0); !errors.Is(err, boom) {
		t.Errorf("OpenFile() error = %v, want injected", err)
	}

	backend.ClearErrors()
	if _, err := sh.Stat("a.txt"); err != nil {
		t.Errorf("Stat() after ClearErrors() error = %v", err)
	}
}

func TestMockBackend_Concurrent(t *testing.T) {
	backend := NewMockSMBBackend()
	sh := mountMock(t, backend, "share")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a'+i)) + ".txt"
			f, err := sh.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				t.Error(err)
				return
			}
			defer f.Close()
			if _, err := f.Write([]byte(name)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for i := range 8 {
		name := string(rune('a'+i)) + ".txt"
		if got, ok := backend.GetFile("share/" + name); !ok || string(got) != name {
			t.Errorf("GetFile(%q) = %q, %v", name, got, ok)
		}
	}
}

func TestMockConnectionFactory(t *testing.T) {
	backend := NewMockSMBBackend()
	f := NewMockConnectionFactory(backend)
	f.DialErrors = []error{errors.New("first")}

	ctx := context.Background()
	if _, err := f.Dial(ctx, "a:445", nil); err == nil {
		t.Error("first Dial() succeeded")
	}
	if _, err := f.Dial(ctx, "b:445", nil); err != nil {
		t.Errorf("second Dial() error = %v", err)
	}
	if f.ConnectAttempts() != 2 || f.ConnectionsMade() != 1 || f.LastAddr() != "b:445" {
		t.Errorf("attempts=%d made=%d addr=%q", f.ConnectAttempts(), f.ConnectionsMade(), f.LastAddr())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.Dial(cancelled, "c:445", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Dial() with cancelled context error = %v", err)
	}

	f.Reset()
	if f.ConnectAttempts() != 0 || f.ConnectionsMade() != 0 {
		t.Error("Reset() kept counters")
	}
}

func TestMockObjectStore(t *testing.T) {
	ctx := context.Background()
	store := NewMockObjectStore()
	store.Put("b", "k2", []byte("two"))
	store.Put("b", "k1", []byte("one"))
	store.Put("other", "k3", nil)

	if keys := store.Keys("b"); len(keys) != 2 || keys[0] != "k1" {
		t.Errorf("Keys() = %v", keys)
	}

	head, err := store.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String("b"), Key: aws.String("k2")})
	if err != nil || aws.ToInt64(head.ContentLength) != 3 {
		t.Errorf("HeadObject() = %v, %v", head, err)
	}

	_, err = store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String("b"),
		Key:           aws.String("bad"),
		Body:          io.NopCloser(io.LimitReader(zeroReader{}, 4)),
		ContentLength: aws.Int64(5),
	})
	if err == nil {
		t.Error("PutObject() with wrong ContentLength succeeded")
	}
	if store.Puts() != 0 {
		t.Errorf("Puts() = %d after failed put", store.Puts())
	}

	out, err := store.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:     aws.String("b"),
		StartAfter: aws.String("k1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contents) != 1 || aws.ToString(out.Contents[0].Key) != "k2" {
		t.Errorf("ListObjectsV2(StartAfter) = %v", out.Contents)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
