package fsxpath

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockSMBBackend is an in-memory FSx file server for tests. It holds any
// number of shares, matches names case-insensitively like Windows, and
// records every operation for verification.
//
// Paths given to the Add* helpers start with the share name, with either
// separator: "share/docs/a.txt" or `share\docs\a.txt`.
type MockSMBBackend struct {
	mu sync.RWMutex

	// files maps lower-case /share/path keys to entries
	files map[string]*mockFileData

	// shares maps lower-case share names to their display names
	shares map[string]string

	// errors to inject for specific operations
	errorOnPath map[string]error
	errorOnOp   map[string]error

	// operation tracking for verification (separate mutex to avoid lock contention)
	opMu       sync.Mutex
	operations []MockOperation
}

// mockFileData represents a file or directory in the mock filesystem.
type mockFileData struct {
	name    string
	content []byte
	mode    fs.FileMode
	attrs   Attributes
	times   FileTimes
	isDir   bool
}

// MockOperation records an operation performed on the mock backend.
type MockOperation struct {
	Op   string
	Path string
	Args []any
	Time time.Time
}

// NewMockSMBBackend creates a mock server exposing the default share.
func NewMockSMBBackend() *MockSMBBackend {
	m := &MockSMBBackend{
		files:       make(map[string]*mockFileData),
		shares:      make(map[string]string),
		errorOnPath: make(map[string]error),
		errorOnOp:   make(map[string]error),
	}
	m.addShareLocked(DefaultShare)
	return m
}

// AddShare adds an empty share.
func (m *MockSMBBackend) AddShare(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addShareLocked(name)
}

// addShareLocked adds a share without acquiring lock (caller must hold lock).
func (m *MockSMBBackend) addShareLocked(name string) {
	key := strings.ToLower(name)
	if _, ok := m.shares[key]; ok {
		return
	}
	m.shares[key] = name
	m.files["/"+key] = newMockDir(name, 0o755)
}

func newMockDir(name string, mode fs.FileMode) *mockFileData {
	now := time.Now()
	return &mockFileData{
		name:  name,
		isDir: true,
		mode:  fs.ModeDir | mode,
		attrs: AttrDirectory,
		times: FileTimes{Access: now, Write: now, Creation: now, Change: now},
	}
}

func newMockFile(name string, content []byte, mode fs.FileMode) *mockFileData {
	now := time.Now()
	return &mockFileData{
		name:    name,
		content: content,
		mode:    mode,
		attrs:   AttrArchive,
		times:   FileTimes{Access: now, Write: now, Creation: now, Change: now},
	}
}

// AddFile adds a file, creating the share and parent directories.
func (m *MockSMBBackend) AddFile(p string, content []byte, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, key := m.splitFixture(p)
	m.addShareLocked(share)
	m.files[key] = newMockFile(displayBase(p), append([]byte(nil), content...), mode)
	m.ensureParentDirs(key, p)
}

// AddDir adds a directory, creating the share and parent directories.
func (m *MockSMBBackend) AddDir(p string, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, key := m.splitFixture(p)
	m.addShareLocked(share)
	if _, ok := m.files[key]; !ok {
		m.files[key] = newMockDir(displayBase(p), mode)
	}
	m.ensureParentDirs(key, p)
}

// SetAttributes overwrites the Windows attributes of an entry.
func (m *MockSMBBackend) SetAttributes(p string, attrs Attributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, key := m.splitFixture(p)
	if f, ok := m.files[key]; ok {
		f.attrs = attrs
	}
}

// SetError sets an error to return for a specific path.
func (m *MockSMBBackend) SetError(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, key := m.splitFixture(p)
	m.errorOnPath[key] = err
}

// SetOperationError sets an error to return for a specific operation type.
func (m *MockSMBBackend) SetOperationError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorOnOp[op] = err
}

// ClearErrors clears all injected errors.
func (m *MockSMBBackend) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorOnPath = make(map[string]error)
	m.errorOnOp = make(map[string]error)
}

// GetOperations returns all recorded operations.
func (m *MockSMBBackend) GetOperations() []MockOperation {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	ops := make([]MockOperation, len(m.operations))
	copy(ops, m.operations)
	return ops
}

// CountOperations returns how many times op was recorded.
func (m *MockSMBBackend) CountOperations(op string) int {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	n := 0
	for _, o := range m.operations {
		if o.Op == op {
			n++
		}
	}
	return n
}

// ClearOperations clears the operation history.
func (m *MockSMBBackend) ClearOperations() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.operations = nil
}

// GetFile returns the content of a file (for test verification).
func (m *MockSMBBackend) GetFile(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, key := m.splitFixture(p)
	if f, ok := m.files[key]; ok && !f.isDir {
		return append([]byte(nil), f.content...), true
	}
	return nil, false
}

// FileExists returns true if the entry exists.
func (m *MockSMBBackend) FileExists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, key := m.splitFixture(p)
	_, ok := m.files[key]
	return ok
}

// recordOp records an operation for later verification.
func (m *MockSMBBackend) recordOp(op, p string, args ...any) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.operations = append(m.operations, MockOperation{
		Op:   op,
		Path: p,
		Args: args,
		Time: time.Now(),
	})
}

// checkError checks for injected errors.
func (m *MockSMBBackend) checkError(op, key string) error {
	if err, ok := m.errorOnOp[op]; ok {
		return err
	}
	if err, ok := m.errorOnPath[key]; ok {
		return err
	}
	return nil
}

// splitFixture maps a share-qualified fixture path to its share and key.
func (m *MockSMBBackend) splitFixture(p string) (share, key string) {
	clean := normalizeMockPath(p)
	share, _, _ = strings.Cut(strings.TrimPrefix(clean, "/"), "/")
	return share, strings.ToLower(clean)
}

// ensureParentDirs creates the missing parents of key. display is the
// original-case path the names are taken from.
func (m *MockSMBBackend) ensureParentDirs(key, display string) {
	dir := path.Dir(key)
	ddir := path.Dir(normalizeMockPath(display))
	for dir != "/" && path.Dir(dir) != "/" {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = newMockDir(path.Base(ddir), 0o755)
		}
		dir, ddir = path.Dir(dir), path.Dir(ddir)
	}
}

// normalizeMockPath normalizes a path for the mock filesystem.
func normalizeMockPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func displayBase(p string) string {
	return path.Base(normalizeMockPath(p))
}

// mockStat is returned by mockFileInfo.Sys.
type mockStat struct {
	attrs Attributes
	times FileTimes
}

func (s mockStat) FileAttributes() Attributes { return s.attrs }
func (s mockStat) FileTimes() FileTimes       { return s.times }

// mockFileInfo implements fs.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
	sys     mockStat
}

func newMockFileInfo(d *mockFileData) *mockFileInfo {
	return &mockFileInfo{
		name:    d.name,
		size:    int64(len(d.content)),
		mode:    d.mode,
		modTime: d.times.Write,
		isDir:   d.isDir,
		sys:     mockStat{attrs: d.attrs, times: d.times},
	}
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() any           { return fi.sys }

// MockSMBSession implements SMBSession for testing.
type MockSMBSession struct {
	backend   *MockSMBBackend
	loggedOff bool
	mu        sync.Mutex
}

// NewMockSMBSession creates a new mock SMB session.
func NewMockSMBSession(backend *MockSMBBackend) *MockSMBSession {
	return &MockSMBSession{backend: backend}
}

// Mount mounts a share and returns an SMBShare interface.
func (s *MockSMBSession) Mount(shareName string) (SMBShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedOff {
		return nil, errors.New("session logged off")
	}

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	key := strings.ToLower(shareName)
	if err := s.backend.checkError("mount", "/"+key); err != nil {
		return nil, err
	}
	if _, ok := s.backend.shares[key]; !ok {
		return nil, errors.New("share not found: " + shareName)
	}

	s.backend.recordOp("mount", shareName)
	return &MockSMBShare{backend: s.backend, shareKey: key}, nil
}

// ListSharenames lists the shares of the backend, sorted.
func (s *MockSMBSession) ListSharenames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedOff {
		return nil, errors.New("session logged off")
	}

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	if err := s.backend.checkError("listshares", ""); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.backend.shares))
	for _, name := range s.backend.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	s.backend.recordOp("listshares", "")
	return names, nil
}

// Logoff ends the session.
func (s *MockSMBSession) Logoff() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedOff {
		return nil
	}
	s.loggedOff = true
	s.backend.recordOp("logoff", "")
	return nil
}

// MockSMBShare implements SMBShare for testing.
type MockSMBShare struct {
	backend   *MockSMBBackend
	shareKey  string
	unmounted bool
	mu        sync.Mutex
}

var errUnmounted = errors.New("share unmounted")

// key maps a name inside the share to a backend key.
func (sh *MockSMBShare) key(name string) string {
	return strings.ToLower(path.Clean("/" + sh.shareKey + normalizeMockPath(name)))
}

// OpenFile opens a file with the specified flags and permissions.
func (sh *MockSMBShare) OpenFile(name string, flag int, perm fs.FileMode) (SMBFile, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return nil, errUnmounted
	}

	sh.backend.mu.Lock()
	defer sh.backend.mu.Unlock()

	key := sh.key(name)
	if err := sh.backend.checkError("open", key); err != nil {
		return nil, err
	}
	sh.backend.recordOp("open", key, flag, perm)

	data, exists := sh.backend.files[key]

	create := flag&os.O_CREATE != 0
	excl := flag&os.O_EXCL != 0
	trunc := flag&os.O_TRUNC != 0

	if excl && exists {
		return nil, fs.ErrExist
	}

	if !exists {
		if !create {
			return nil, fs.ErrNotExist
		}
		parent, ok := sh.backend.files[path.Dir(key)]
		if !ok {
			return nil, fs.ErrNotExist
		}
		if !parent.isDir {
			return nil, errors.New("parent is not a directory")
		}
		data = newMockFile(displayBase(name), []byte{}, perm)
		sh.backend.files[key] = data
	}

	if data.isDir && (flag&(os.O_WRONLY|os.O_RDWR) != 0) {
		return nil, errors.New("is a directory")
	}

	if trunc && !data.isDir {
		data.content = []byte{}
		data.times.Write = time.Now()
	}

	return &MockSMBFile{
		backend: sh.backend,
		key:     key,
		data:    data,
		flag:    flag,
	}, nil
}

// Stat returns file info for the specified path.
func (sh *MockSMBShare) Stat(name string) (fs.FileInfo, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return nil, errUnmounted
	}

	sh.backend.mu.RLock()
	defer sh.backend.mu.RUnlock()

	key := sh.key(name)
	if err := sh.backend.checkError("stat", key); err != nil {
		return nil, err
	}
	sh.backend.recordOp("stat", key)

	data, exists := sh.backend.files[key]
	if !exists {
		return nil, fs.ErrNotExist
	}
	return newMockFileInfo(data), nil
}

// Mkdir creates a directory.
func (sh *MockSMBShare) Mkdir(name string, perm fs.FileMode) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return errUnmounted
	}

	sh.backend.mu.Lock()
	defer sh.backend.mu.Unlock()

	key := sh.key(name)
	if err := sh.backend.checkError("mkdir", key); err != nil {
		return err
	}
	sh.backend.recordOp("mkdir", key, perm)

	if _, exists := sh.backend.files[key]; exists {
		return fs.ErrExist
	}

	parent, ok := sh.backend.files[path.Dir(key)]
	if !ok {
		return fs.ErrNotExist
	}
	if !parent.isDir {
		return errors.New("parent is not a directory")
	}

	sh.backend.files[key] = newMockDir(displayBase(name), perm)
	return nil
}

// Remove removes a file or empty directory.
func (sh *MockSMBShare) Remove(name string) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return errUnmounted
	}

	sh.backend.mu.Lock()
	defer sh.backend.mu.Unlock()

	key := sh.key(name)
	if err := sh.backend.checkError("remove", key); err != nil {
		return err
	}
	sh.backend.recordOp("remove", key)

	data, exists := sh.backend.files[key]
	if !exists {
		return fs.ErrNotExist
	}

	if data.isDir {
		for p := range sh.backend.files {
			if strings.HasPrefix(p, key+"/") {
				return errors.New("directory not empty")
			}
		}
	}

	delete(sh.backend.files, key)
	return nil
}

// Rename renames a file or directory.
func (sh *MockSMBShare) Rename(oldname, newname string) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return errUnmounted
	}

	sh.backend.mu.Lock()
	defer sh.backend.mu.Unlock()

	oldKey := sh.key(oldname)
	newKey := sh.key(newname)
	if err := sh.backend.checkError("rename", oldKey); err != nil {
		return err
	}
	sh.backend.recordOp("rename", oldKey, newKey)

	data, exists := sh.backend.files[oldKey]
	if !exists {
		return fs.ErrNotExist
	}
	if _, exists := sh.backend.files[newKey]; exists {
		return fs.ErrExist
	}
	if _, ok := sh.backend.files[path.Dir(newKey)]; !ok {
		return fs.ErrNotExist
	}

	delete(sh.backend.files, oldKey)
	data.name = displayBase(newname)
	sh.backend.files[newKey] = data

	if data.isDir {
		for p, d := range sh.backend.files {
			if strings.HasPrefix(p, oldKey+"/") {
				delete(sh.backend.files, p)
				sh.backend.files[newKey+strings.TrimPrefix(p, oldKey)] = d
			}
		}
	}
	return nil
}

// Umount unmounts the share.
func (sh *MockSMBShare) Umount() error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.unmounted {
		return nil
	}
	sh.unmounted = true
	sh.backend.recordOp("umount", sh.shareKey)
	return nil
}

// MockSMBFile implements SMBFile for testing.
type MockSMBFile struct {
	backend *MockSMBBackend
	key     string
	data    *mockFileData
	flag    int
	offset  int64
	closed  bool
	mu      sync.Mutex
}

// Read reads up to len(p) bytes into p.
func (f *MockSMBFile) Read(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, fs.ErrClosed
	}

	f.backend.mu.RLock()
	defer f.backend.mu.RUnlock()

	if err := f.backend.checkError("read", f.key); err != nil {
		return 0, err
	}
	if f.data.isDir {
		return 0, errors.New("is a directory")
	}
	if f.offset >= int64(len(f.data.content)) {
		return 0, io.EOF
	}

	n = copy(p, f.data.content[f.offset:])
	f.offset += int64(n)
	return n, nil
}

// Write writes len(p) bytes from p to the file.
func (f *MockSMBFile) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return 0, errors.New("file not opened for writing")
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()

	if err := f.backend.checkError("write", f.key); err != nil {
		return 0, err
	}
	if f.data.isDir {
		return 0, errors.New("is a directory")
	}

	if f.flag&os.O_APPEND != 0 {
		f.offset = int64(len(f.data.content))
	}

	end := f.offset + int64(len(p))
	if end > int64(len(f.data.content)) {
		grown := make([]byte, end)
		copy(grown, f.data.content)
		f.data.content = grown
	}

	n = copy(f.data.content[f.offset:], p)
	f.offset += int64(n)
	f.data.times.Write = time.Now()
	return n, nil
}

// Seek sets the offset for the next Read or Write.
func (f *MockSMBFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, fs.ErrClosed
	}

	f.backend.mu.RLock()
	size := int64(len(f.data.content))
	f.backend.mu.RUnlock()

	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.offset + offset
	case io.SeekEnd:
		newOffset = size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if newOffset < 0 {
		return 0, errors.New("negative offset")
	}

	f.offset = newOffset
	return newOffset, nil
}

// Close closes the file.
func (f *MockSMBFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.backend.recordOp("close", f.key)
	return nil
}

// Stat returns file information.
func (f *MockSMBFile) Stat() (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fs.ErrClosed
	}

	f.backend.mu.RLock()
	defer f.backend.mu.RUnlock()

	if err := f.backend.checkError("stat", f.key); err != nil {
		return nil, err
	}
	return newMockFileInfo(f.data), nil
}

// Readdir reads the directory contents.
func (f *MockSMBFile) Readdir(n int) ([]fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fs.ErrClosed
	}

	f.backend.mu.RLock()
	defer f.backend.mu.RUnlock()

	if !f.data.isDir {
		return nil, errors.New("not a directory")
	}
	if err := f.backend.checkError("readdir", f.key); err != nil {
		return nil, err
	}

	prefix := f.key + "/"
	var infos []fs.FileInfo
	for p, data := range f.backend.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		infos = append(infos, newMockFileInfo(data))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	if n > 0 && n < len(infos) {
		infos = infos[:n]
	}
	return infos, nil
}

// MockConnectionFactory implements ConnectionFactory for testing.
type MockConnectionFactory struct {
	Backend *MockSMBBackend

	// ConnectError is returned by every Dial when set.
	ConnectError error

	// DialErrors are returned by the first len(DialErrors) Dial calls.
	DialErrors []error

	mu              sync.Mutex
	connectionsMade int
	connectAttempts int
	lastAddr        string
}

// NewMockConnectionFactory creates a new mock connection factory.
func NewMockConnectionFactory(backend *MockSMBBackend) *MockConnectionFactory {
	return &MockConnectionFactory{Backend: backend}
}

// Dial opens a mock session.
func (f *MockConnectionFactory) Dial(ctx context.Context, addr string, config *Config) (SMBSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempt := f.connectAttempts
	f.connectAttempts++
	f.lastAddr = addr

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ConnectError != nil {
		return nil, f.ConnectError
	}
	if attempt < len(f.DialErrors) && f.DialErrors[attempt] != nil {
		return nil, f.DialErrors[attempt]
	}

	f.connectionsMade++
	return NewMockSMBSession(f.Backend), nil
}

// ConnectionsMade returns the number of successful connections.
func (f *MockConnectionFactory) ConnectionsMade() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectionsMade
}

// ConnectAttempts returns the total connection attempts.
func (f *MockConnectionFactory) ConnectAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectAttempts
}

// LastAddr returns the address of the most recent Dial.
func (f *MockConnectionFactory) LastAddr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAddr
}

// Reset resets the connection tracking.
func (f *MockConnectionFactory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectionsMade = 0
	f.connectAttempts = 0
}
