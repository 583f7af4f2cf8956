package fsxpath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const (
	defaultFileMode fs.FileMode = 0o644
	defaultDirMode  fs.FileMode = 0o755
)

// remote resolves the path to its share through the bound client.
func (p *Path) remote(op string) (SMBShare, string, error) {
	if p.client == nil {
		return nil, "", wrapPathError(op, p.String(), ErrNotConnected)
	}
	sh, name, err := p.client.resolve(p)
	if err != nil {
		return nil, "", wrapPathError(op, p.String(), err)
	}
	return sh, name, nil
}

func (p *Path) ioError(op string, err error) error {
	return wrapPathError(op, p.String(), convertError(err))
}

func (p *Path) dev() uint64 {
	return deviceID(p.server, p.Share())
}

// Stat returns the metadata of the entry. The first successful call
// caches the snapshot on p; later calls return it unchanged. Mutations
// made through p drop the snapshot.
func (p *Path) Stat() (*StatSnapshot, error) {
	if p.stat != nil {
		return p.stat, nil
	}
	st, err := p.fetchStat("stat")
	if err != nil {
		return nil, err
	}
	p.stat = st
	return st, nil
}

func (p *Path) fetchStat(op string) (*StatSnapshot, error) {
	sh, name, err := p.remote(op)
	if err != nil {
		return nil, err
	}
	info, err := sh.Stat(name)
	if err != nil {
		return nil, p.ioError(op, err)
	}
	return newStatSnapshot(info, p.dev()), nil
}

// Size is the size in bytes, from the cached snapshot.
func (p *Path) Size() (int64, error) {
	st, err := p.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size, nil
}

// SizeForHuman is Size in IEC units, e.g. "12 B".
func (p *Path) SizeForHuman() (string, error) {
	st, err := p.Stat()
	if err != nil {
		return "", err
	}
	return st.SizeForHuman(), nil
}

// Kind stats the entry and classifies it. It does not use or fill the
// snapshot cache.
func (p *Path) Kind() (Kind, error) {
	st, err := p.fetchStat("stat")
	if err != nil {
		return KindUnknown, err
	}
	return st.Kind, nil
}

// Exists reports whether the entry exists. Errors other than "not found"
// are returned.
func (p *Path) Exists() (bool, error) {
	_, err := p.fetchStat("stat")
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsFile reports whether the entry exists and is a regular file.
func (p *Path) IsFile() bool {
	k, err := p.Kind()
	return err == nil && k == KindFile
}

// IsDir reports whether the entry exists and is a directory.
func (p *Path) IsDir() bool {
	k, err := p.Kind()
	return err == nil && k == KindDirectory
}

// IsLink reports whether the entry is a reparse point.
func (p *Path) IsLink() bool {
	k, err := p.Kind()
	return err == nil && k == KindSymlink
}

// AssertIsFileAndExists fails with ErrNotFile unless p is an existing file.
func (p *Path) AssertIsFileAndExists() error {
	if !p.IsFile() {
		return wrapPathError("assert", p.String(), ErrNotFile)
	}
	return nil
}

// AssertIsDirAndExists fails with ErrNotDirectory unless p is an existing
// directory.
func (p *Path) AssertIsDirAndExists() error {
	if !p.IsDir() {
		return wrapPathError("assert", p.String(), ErrNotDirectory)
	}
	return nil
}

// Open opens the entry for reading.
func (p *Path) Open() (*File, error) {
	return p.OpenFile(os.O_RDONLY, 0)
}

// Create creates or truncates the file.
func (p *Path) Create() (*File, error) {
	return p.OpenFile(os.O_RDWR|os.O_CREATE|os.O_TRUNC, defaultFileMode)
}

// OpenFile opens the entry with the given os.O_* flags.
func (p *Path) OpenFile(flag int, perm fs.FileMode) (*File, error) {
	sh, name, err := p.remote("open")
	if err != nil {
		return nil, err
	}
	f, err := sh.OpenFile(name, flag, perm)
	if err != nil {
		return nil, p.ioError("open", err)
	}
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		p.stat = nil
	}
	return &File{path: p.String(), dev: p.dev(), file: f}, nil
}

// openReader adapts Open for helpers that take an io.ReadCloser.
func (p *Path) openReader() (io.ReadCloser, error) {
	f, err := p.Open()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadBytes reads the whole file.
func (p *Path) ReadBytes() ([]byte, error) {
	f, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteBytes replaces the file content with data, creating the file if needed.
func (p *Path) WriteBytes(data []byte) (err error) {
	f, err := p.OpenFile(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFileMode)
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

// ReadText reads the whole file as a string.
func (p *Path) ReadText() (string, error) {
	b, err := p.ReadBytes()
	return string(b), err
}

// WriteText replaces the file content with s.
func (p *Path) WriteText(s string) error {
	return p.WriteBytes([]byte(s))
}

// Mkdir creates the directory. The parent must exist.
func (p *Path) Mkdir() error {
	sh, name, err := p.remote("mkdir")
	if err != nil {
		return err
	}
	p.stat = nil
	if err := sh.Mkdir(name, defaultDirMode); err != nil {
		return p.ioError("mkdir", err)
	}
	return nil
}

// MkdirAll creates the directory and any missing parents. Existing
// directories are left alone.
func (p *Path) MkdirAll() error {
	sh, name, err := p.remote("mkdir")
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	p.stat = nil

	segs := strings.Split(name, `\`)
	for i := range segs {
		dir := strings.Join(segs[:i+1], `\`)
		info, err := sh.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return wrapPathError("mkdir", p.String(), fmt.Errorf("%w: %s", ErrNotDirectory, dir))
			}
			continue
		}
		if !isNotExist(err) {
			return p.ioError("mkdir", err)
		}
		if err := sh.Mkdir(dir, defaultDirMode); err != nil && !errors.Is(convertError(err), fs.ErrExist) {
			return p.ioError("mkdir", err)
		}
	}
	return nil
}

// Remove deletes a file. Directories are rejected with ErrIsDirectory.
func (p *Path) Remove() error {
	k, err := p.Kind()
	if err != nil {
		return err
	}
	if k == KindDirectory {
		return wrapPathError("remove", p.String(), ErrIsDirectory)
	}
	sh, name, err := p.remote("remove")
	if err != nil {
		return err
	}
	p.stat = nil
	if err := sh.Remove(name); err != nil {
		return p.ioError("remove", err)
	}
	return nil
}

// Rmdir deletes an empty directory.
func (p *Path) Rmdir() error {
	if err := p.AssertIsDirAndExists(); err != nil {
		return err
	}
	sh, name, err := p.remote("rmdir")
	if err != nil {
		return err
	}
	p.stat = nil
	if err := sh.Remove(name); err != nil {
		return p.ioError("rmdir", err)
	}
	return nil
}

// RemoveAll deletes a directory and everything below it. Files are
// rejected with ErrNotDirectory; use Remove for them.
func (p *Path) RemoveAll() error {
	if err := p.AssertIsDirAndExists(); err != nil {
		return err
	}
	sh, name, err := p.remote("removeall")
	if err != nil {
		return err
	}
	if name == "" {
		return wrapPathError("removeall", p.String(), fmt.Errorf("%w: cannot remove a share root", ErrInvalidPath))
	}
	p.stat = nil
	if err := removeTree(sh, name); err != nil {
		return p.ioError("removeall", err)
	}
	return nil
}

// removeTree deletes children depth first, then the directory itself.
func removeTree(sh SMBShare, dir string) error {
	f, err := sh.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	entries, err := f.Readdir(-1)
	f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		child := dir + `\` + e.Name()
		if e.IsDir() {
			err = removeTree(sh, child)
		} else {
			err = sh.Remove(child)
		}
		if err != nil {
			return err
		}
	}
	return sh.Remove(dir)
}

// RemoveIfExists deletes the entry whatever its kind. A missing entry is
// not an error.
func (p *Path) RemoveIfExists() error {
	k, err := p.Kind()
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	if k == KindDirectory {
		return p.RemoveAll()
	}
	return p.Remove()
}

// Rename moves the entry to dst, which must be on the same share.
func (p *Path) Rename(dst *Path) error {
	sh, name, err := p.remote("rename")
	if err != nil {
		return err
	}
	if !strings.EqualFold(p.server, dst.server) {
		return wrapPathError("rename", dst.String(), ErrServerMismatch)
	}
	if !strings.EqualFold(p.Share(), dst.Share()) {
		return wrapPathError("rename", dst.String(), fmt.Errorf("%w: rename across shares", ErrInvalidPath))
	}
	p.stat = nil
	dst.stat = nil
	if err := sh.Rename(name, dst.toSMBPath()); err != nil {
		return p.ioError("rename", err)
	}
	return nil
}

// Hash digests the first nbytes of the file (all of it when nbytes is 0).
func (p *Path) Hash(algo HashAlgorithm, nbytes int64, chunkSize int) (string, error) {
	return HashFile(p.openReader, algo, nbytes, chunkSize)
}

// MD5 is the hex MD5 of the whole file.
func (p *Path) MD5() (string, error) {
	return p.Hash(MD5, 0, DefaultChunkSize)
}

// SHA256 is the hex SHA-256 of the whole file.
func (p *Path) SHA256() (string, error) {
	return p.Hash(SHA256, 0, DefaultChunkSize)
}

// SHA512 is the hex SHA-512 of the whole file.
func (p *Path) SHA512() (string, error) {
	return p.Hash(SHA512, 0, DefaultChunkSize)
}

// readDir lists the directory, skipping "." and "..".
func (p *Path) readDir() ([]*dirEntry, error) {
	f, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	out := make([]*dirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.(*dirEntry))
	}
	return out, nil
}
