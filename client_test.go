package fsxpath

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/fsx/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testFileSystemID = "fs-0123456789abcdef0"
	testServer       = "amznfsxtest1234.corp.example.com"
)

func testConfig() *Config {
	return &Config{
		FileSystemID: testFileSystemID,
		Username:     `CORP\alice`,
		Password:     "secret",
	}
}

func testDescriber() *StaticDescriber {
	return &StaticDescriber{
		FileSystems: []types.FileSystem{WindowsFileSystem(testFileSystemID, testServer)},
	}
}

// newTestClient returns a connected client backed by backend.
func newTestClient(t *testing.T, backend *MockSMBBackend) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Logger = zaptest.NewLogger(t)
	return connectTestClient(t, cfg, backend)
}

// newObservedClient returns a connected client whose logs are captured.
func newObservedClient(t *testing.T, backend *MockSMBBackend) (*Client, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	cfg := testConfig()
	cfg.Logger = zap.New(core)
	return connectTestClient(t, cfg, backend), logs
}

func connectTestClient(t testing.TB, cfg *Config, backend *MockSMBBackend) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := NewWithFactory(ctx, cfg, testDescriber(), NewMockConnectionFactory(backend))
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return c
}

func TestNewWithFactory_DescribesFileSystem(t *testing.T) {
	describer := testDescriber()
	describer.FileSystems[0].SubnetIds = []string{"subnet-a", "subnet-b"}
	describer.FileSystems[0].WindowsConfiguration.PreferredFileServerIp = aws.String("10.0.0.5")

	c, err := NewWithFactory(context.Background(), testConfig(), describer, NewMockConnectionFactory(NewMockSMBBackend()))
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}

	if describer.Calls != 1 {
		t.Errorf("DescribeFileSystems called %d times, want 1", describer.Calls)
	}
	if c.Server() != testServer {
		t.Errorf("Server() = %q, want %q", c.Server(), testServer)
	}

	d := c.FileSystem()
	if d.ID != testFileSystemID {
		t.Errorf("ID = %q", d.ID)
	}
	if d.Type != types.FileSystemTypeWindows {
		t.Errorf("Type = %q", d.Type)
	}
	if d.StorageType != types.StorageTypeSsd || d.StorageCapacity != 32 {
		t.Errorf("storage = %q/%d", d.StorageType, d.StorageCapacity)
	}
	if d.ActiveDirectoryID != "d-0000000000" {
		t.Errorf("ActiveDirectoryID = %q", d.ActiveDirectoryID)
	}
	if d.PreferredFileServerIP != "10.0.0.5" {
		t.Errorf("PreferredFileServerIP = %q", d.PreferredFileServerIP)
	}

	// The descriptor is returned by value.
	d.SubnetIDs[0] = "changed"
	if got := c.FileSystem().SubnetIDs[0]; got != "subnet-a" {
		t.Errorf("SubnetIDs[0] = %q after caller mutation", got)
	}
}

func TestNewWithFactory_DescribeErrors(t *testing.T) {
	tests := []struct {
		name      string
		describer *StaticDescriber
	}{
		{
			name:      "no file system",
			describer: &StaticDescriber{},
		},
		{
			name: "two file systems",
			describer: &StaticDescriber{FileSystems: []types.FileSystem{
				WindowsFileSystem(testFileSystemID, "a.example.com"),
				WindowsFileSystem(testFileSystemID, "b.example.com"),
			}},
		},
		{
			name:      "api failure",
			describer: &StaticDescriber{Err: errors.New("throttled")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithFactory(context.Background(), testConfig(), tt.describer, NewMockConnectionFactory(NewMockSMBBackend()))
			if !errors.Is(err, ErrDescribeFileSystem) {
				t.Errorf("error = %v, want ErrDescribeFileSystem", err)
			}
		})
	}
}

func TestNewWithFactory_InvalidConfig(t *testing.T) {
	_, err := NewWithFactory(context.Background(), &Config{}, testDescriber(), NewMockConnectionFactory(NewMockSMBBackend()))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}

	_, err = NewWithFactory(context.Background(), nil, testDescriber(), NewMockConnectionFactory(NewMockSMBBackend()))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil config error = %v, want ErrInvalidConfig", err)
	}
}

func TestClient_ConnectAndClose(t *testing.T) {
	backend := NewMockSMBBackend()
	factory := NewMockConnectionFactory(backend)
	ctx := context.Background()

	c, err := NewWithFactory(ctx, testConfig(), testDescriber(), factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}

	if c.Connected() {
		t.Fatal("client connected before Connect")
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if factory.ConnectionsMade() != 1 {
		t.Errorf("ConnectionsMade() = %d, want 1", factory.ConnectionsMade())
	}
	if got, want := factory.LastAddr(), testServer+":445"; got != want {
		t.Errorf("dial address = %q, want %q", got, want)
	}

	// Touch the share so Close has something to unmount.
	if _, err := c.Root().Exists(); err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if backend.CountOperations("umount") != 1 {
		t.Errorf("umount count = %d, want 1", backend.CountOperations("umount"))
	}
	if backend.CountOperations("logoff") != 1 {
		t.Errorf("logoff count = %d, want 1", backend.CountOperations("logoff"))
	}
}

func TestClient_EndpointOverride(t *testing.T) {
	factory := NewMockConnectionFactory(NewMockSMBBackend())
	cfg := testConfig()
	cfg.Endpoint = "10.0.0.5"
	cfg.Port = 1445

	c, err := NewWithFactory(context.Background(), cfg, testDescriber(), factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if got := factory.LastAddr(); got != "10.0.0.5:1445" {
		t.Errorf("dial address = %q", got)
	}
	// Paths keep the DNS name of the file system.
	if got := c.Path("share").Server(); got != testServer {
		t.Errorf("Server() = %q", got)
	}
}

func TestClient_ConnectError(t *testing.T) {
	factory := NewMockConnectionFactory(NewMockSMBBackend())
	factory.ConnectError = ErrAuthenticationFailed

	c, err := NewWithFactory(context.Background(), testConfig(), testDescriber(), factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}

	err = c.Connect(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Connect() error = %v, want ErrAuthenticationFailed", err)
	}
	if c.Connected() {
		t.Error("client connected after failed Connect")
	}
	// No retry policy: one attempt.
	if factory.ConnectAttempts() != 1 {
		t.Errorf("ConnectAttempts() = %d, want 1", factory.ConnectAttempts())
	}
}

func TestClient_WithSession(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/a.txt", []byte("hello"), 0o644)
	factory := NewMockConnectionFactory(backend)

	c, err := NewWithFactory(context.Background(), testConfig(), testDescriber(), factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}

	var text string
	err = c.WithSession(context.Background(), func(c *Client) error {
		var err error
		text, err = c.Path("share", "a.txt").ReadText()
		return err
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("ReadText() = %q", text)
	}
	if c.Connected() {
		t.Error("session left open")
	}

	boom := errors.New("boom")
	err = c.WithSession(context.Background(), func(c *Client) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("WithSession() error = %v, want boom", err)
	}
	if c.Connected() {
		t.Error("session left open after failure")
	}
}

func TestClient_PathBinding(t *testing.T) {
	c := newTestClient(t, NewMockSMBBackend())

	p := c.Path("share", "docs", "a.txt")
	if p.Client() != c {
		t.Error("Path() not bound to client")
	}
	if got, want := p.String(), `\\`+testServer+`\share\docs\a.txt`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if p.Parent().Client() != c {
		t.Error("Parent() lost the client")
	}

	bound, err := c.Bind(`\\` + testServer + `\share\x`)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if bound.Client() != c {
		t.Error("Bind() not bound to client")
	}

	_, err = c.Bind(`\\other.example.com\share\x`)
	if !errors.Is(err, ErrServerMismatch) {
		t.Errorf("Bind() error = %v, want ErrServerMismatch", err)
	}
}

func TestClient_PathErrors(t *testing.T) {
	c := newTestClient(t, NewMockSMBBackend())

	t.Run("unbound path", func(t *testing.T) {
		_, err := NewPath("srv", "share", "a.txt").Stat()
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("error = %v, want ErrNotConnected", err)
		}
		if !errors.Is(convertError(err), fs.ErrClosed) {
			t.Errorf("convertError() = %v, want fs.ErrClosed", convertError(err))
		}
	})

	t.Run("server mismatch", func(t *testing.T) {
		p := NewPath("other.example.com", "share", "a.txt")
		p.client = c
		_, err := p.Stat()
		if !errors.Is(err, ErrServerMismatch) {
			t.Errorf("error = %v, want ErrServerMismatch", err)
		}
	})

	t.Run("server root", func(t *testing.T) {
		_, err := c.Path().Stat()
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("closed client", func(t *testing.T) {
		c2, err := NewWithFactory(context.Background(), testConfig(), testDescriber(), NewMockConnectionFactory(NewMockSMBBackend()))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c2.Path("share").Stat()
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("error = %v, want ErrNotConnected", err)
		}
	})
}

func TestClient_ListShares(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddShare("IPC$")
	backend.AddShare("D$")
	backend.AddShare("Projects")
	c := newTestClient(t, backend)

	shares, err := c.ListShares()
	if err != nil {
		t.Fatalf("ListShares() error = %v", err)
	}

	want := map[string]ShareType{
		"share":    ShareTypeDisk,
		"Projects": ShareTypeDisk,
		"IPC$":     ShareTypeIPC,
		"D$":       ShareTypeSpecial,
	}
	if len(shares) != len(want) {
		t.Fatalf("ListShares() = %v", shares)
	}
	for _, s := range shares {
		if want[s.Name] != s.Type {
			t.Errorf("share %s type = %v, want %v", s.Name, s.Type, want[s.Name])
		}
	}
}

func TestClient_SharesMountedLazily(t *testing.T) {
	backend := NewMockSMBBackend()
	backend.AddFile("share/a.txt", []byte("a"), 0o644)
	backend.AddFile("other/b.txt", []byte("b"), 0o644)
	c := newTestClient(t, backend)

	if backend.CountOperations("mount") != 0 {
		t.Fatalf("mount before first use")
	}
	for range 3 {
		if _, err := c.Path("share", "a.txt").ReadBytes(); err != nil {
			t.Fatal(err)
		}
	}
	// Share names are case-insensitive.
	if _, err := c.Path("SHARE", "a.txt").ReadBytes(); err != nil {
		t.Fatal(err)
	}
	if got := backend.CountOperations("mount"); got != 1 {
		t.Errorf("mount count = %d, want 1", got)
	}
	if _, err := c.Path("other", "b.txt").ReadBytes(); err != nil {
		t.Fatal(err)
	}
	if got := backend.CountOperations("mount"); got != 2 {
		t.Errorf("mount count = %d, want 2", got)
	}
}

func TestClient_ObjectPathWithoutAPI(t *testing.T) {
	c := newTestClient(t, NewMockSMBBackend())
	_, err := c.ObjectPath("s3://bucket/key")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ObjectPath() error = %v, want ErrInvalidConfig", err)
	}
}
