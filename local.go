package fsxpath

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/absfs/absfs"
)

// LocalFS is the part of a local filesystem the copy engine needs.
// *memfs.FileSystem and the operating system filesystem both satisfy it.
type LocalFS interface {
	Stat(name string) (os.FileInfo, error)
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	MkdirAll(name string, perm os.FileMode) error
}

var errSymlinkLoop = errors.New("symlink loop")

// osFS serves LocalFS from the operating system.
type osFS struct{}

func (osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(filepath.FromSlash(name))
}

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(filepath.FromSlash(name), flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(filepath.FromSlash(name), perm)
}

// LocalPath is a path on a local filesystem, slash separated.
type LocalPath struct {
	fs   LocalFS
	path string
}

// NewLocalPath is a path on the operating system filesystem.
func NewLocalPath(name string) LocalPath {
	return LocalPath{fs: osFS{}, path: path.Clean(filepath.ToSlash(name))}
}

// NewLocalPathFS is a path on fsys.
func NewLocalPathFS(fsys LocalFS, name string) LocalPath {
	return LocalPath{fs: fsys, path: path.Clean(name)}
}

func (l LocalPath) location() {}

// URI is the slash separated path.
func (l LocalPath) URI() string {
	return l.path
}

func (l LocalPath) String() string {
	return l.path
}

// Name is the last element.
func (l LocalPath) Name() string {
	return path.Base(l.path)
}

// Parent is the containing directory.
func (l LocalPath) Parent() LocalPath {
	return LocalPath{fs: l.fs, path: path.Dir(l.path)}
}

// Join appends elements.
func (l LocalPath) Join(elem ...string) LocalPath {
	return LocalPath{fs: l.fs, path: path.Join(append([]string{l.path}, elem...)...)}
}

// Kind stats the entry and classifies it.
func (l LocalPath) Kind() (Kind, error) {
	info, err := l.fs.Stat(l.path)
	if err != nil {
		return KindUnknown, wrapPathError("stat", l.path, err)
	}
	return kindOf(info.Mode(), 0), nil
}

// Open opens the file for reading.
func (l LocalPath) Open() (absfs.File, error) {
	f, err := l.fs.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, wrapPathError("open", l.path, err)
	}
	return f, nil
}

// Create creates or truncates the file. Missing parents are created.
func (l LocalPath) Create() (absfs.File, error) {
	if err := l.Parent().MkdirAll(); err != nil {
		return nil, err
	}
	f, err := l.fs.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, defaultFileMode)
	if err != nil {
		return nil, wrapPathError("create", l.path, err)
	}
	return f, nil
}

// MkdirAll creates the directory and any missing parents.
func (l LocalPath) MkdirAll() error {
	if err := l.fs.MkdirAll(l.path, defaultDirMode); err != nil {
		return wrapPathError("mkdir", l.path, err)
	}
	return nil
}

// ReadBytes reads the whole file.
func (l LocalPath) ReadBytes() ([]byte, error) {
	f, err := l.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteBytes replaces the file content with data.
func (l LocalPath) WriteBytes(data []byte) (err error) {
	f, err := l.Create()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

// Hash digests the first nbytes of the file (all of it when nbytes is 0).
func (l LocalPath) Hash(algo HashAlgorithm, nbytes int64, chunkSize int) (string, error) {
	return HashFile(func() (io.ReadCloser, error) { return l.Open() }, algo, nbytes, chunkSize)
}

// walk lists the tree below l breadth first. Paths are relative to l as
// segment lists. Entries are classified by Stat, so a symlink counts as
// whatever it points to; a link back into its own ancestry is an error.
func (l LocalPath) walk() (dirs, files [][]string, err error) {
	type pending struct {
		rel       []string
		ancestors []os.FileInfo
	}
	rootInfo, err := l.fs.Stat(l.path)
	if err != nil {
		return nil, nil, wrapPathError("stat", l.path, err)
	}
	queue := []pending{{ancestors: []os.FileInfo{rootInfo}}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		dir := l.Join(next.rel...)
		f, err := dir.Open()
		if err != nil {
			return nil, nil, err
		}
		entries, err := f.Readdir(-1)
		cerr := f.Close()
		if err != nil && err != io.EOF {
			return nil, nil, wrapPathError("readdir", dir.path, err)
		}
		if cerr != nil {
			return nil, nil, wrapPathError("close", dir.path, cerr)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if e.Name() == "." || e.Name() == ".." {
				continue
			}
			child := append(append([]string(nil), next.rel...), e.Name())
			childPath := dir.Join(e.Name()).path
			info, err := l.fs.Stat(childPath)
			if err != nil {
				return nil, nil, wrapPathError("stat", childPath, err)
			}
			switch {
			case info.IsDir():
				for _, a := range next.ancestors {
					if os.SameFile(a, info) {
						return nil, nil, wrapPathError("walk", childPath, errSymlinkLoop)
					}
				}
				ancestors := append(append([]os.FileInfo(nil), next.ancestors...), info)
				dirs = append(dirs, child)
				queue = append(queue, pending{rel: child, ancestors: ancestors})
			case info.Mode().IsRegular():
				files = append(files, child)
			default:
				return nil, nil, wrapPathError("walk", childPath, ErrNotImplemented)
			}
		}
	}
	return dirs, files, nil
}
