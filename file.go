package fsxpath

import (
	"errors"
	"io"
	"io/fs"
)

// File is an open file or directory on an FSx share.
type File struct {
	path     string
	dev      uint64
	file     SMBFile
	dirEntry []fs.DirEntry
	dirPos   int
}

// Name returns the UNC path the file was opened with.
func (f *File) Name() string {
	return f.path
}

// Read reads up to len(p) bytes into p.
func (f *File) Read(p []byte) (n int, err error) {
	if f.file == nil {
		return 0, fs.ErrClosed
	}

	n, err = f.file.Read(p)
	if err != nil && err != io.EOF {
		return n, wrapPathError("read", f.path, err)
	}
	return n, err
}

// Write writes len(p) bytes from p to the file.
func (f *File) Write(p []byte) (n int, err error) {
	if f.file == nil {
		return 0, fs.ErrClosed
	}

	n, err = f.file.Write(p)
	if err != nil {
		return n, wrapPathError("write", f.path, err)
	}
	return n, nil
}

// Seek sets the offset for the next Read or Write on the file.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.file == nil {
		return 0, fs.ErrClosed
	}

	newOffset, err := f.file.Seek(offset, whence)
	if err != nil {
		return 0, wrapPathError("seek", f.path, err)
	}
	return newOffset, nil
}

// Close closes the file. Closing twice is a no-op.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}

	err := f.file.Close()
	f.file = nil
	if err != nil {
		return wrapPathError("close", f.path, err)
	}
	return nil
}

// Stat returns file information.
func (f *File) Stat() (fs.FileInfo, error) {
	if f.file == nil {
		return nil, fs.ErrClosed
	}

	stat, err := f.file.Stat()
	if err != nil {
		return nil, wrapPathError("stat", f.path, err)
	}
	return stat, nil
}

// Snapshot returns the metadata of the open file.
func (f *File) Snapshot() (*StatSnapshot, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return newStatSnapshot(info, f.dev), nil
}

// ReadDir reads the contents of the directory.
func (f *File) ReadDir(n int) ([]fs.DirEntry, error) {
	if f.file == nil {
		return nil, fs.ErrClosed
	}

	// Read all entries on first call
	if f.dirEntry == nil {
		entries, err := f.file.Readdir(-1)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, wrapPathError("readdir", f.path, err)
		}

		f.dirEntry = make([]fs.DirEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Name() == "." || entry.Name() == ".." {
				continue
			}
			f.dirEntry = append(f.dirEntry, &dirEntry{info: entry, dev: f.dev})
		}
		f.dirPos = 0
	}

	if n <= 0 {
		entries := f.dirEntry[f.dirPos:]
		f.dirPos = len(f.dirEntry)
		return entries, nil
	}

	if f.dirPos >= len(f.dirEntry) {
		return nil, io.EOF
	}

	end := min(f.dirPos+n, len(f.dirEntry))
	entries := f.dirEntry[f.dirPos:end]
	f.dirPos = end

	return entries, nil
}

// dirEntry implements fs.DirEntry over an SMB directory listing.
type dirEntry struct {
	info fs.FileInfo
	dev  uint64
}

func (d *dirEntry) Name() string {
	return d.info.Name()
}

func (d *dirEntry) IsDir() bool {
	return d.info.IsDir()
}

func (d *dirEntry) Type() fs.FileMode {
	return d.info.Mode().Type()
}

func (d *dirEntry) Info() (fs.FileInfo, error) {
	return d.info, nil
}

// kind resolves the entry kind from the listing without another round trip.
func (d *dirEntry) kind() Kind {
	return newStatSnapshot(d.info, d.dev).Kind
}

