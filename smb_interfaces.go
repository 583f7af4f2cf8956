package fsxpath

import (
	"context"
	"io/fs"
)

// SMBSession abstracts an SMB session for testability.
// This interface wraps the go-smb2 Session type.
type SMBSession interface {
	// Mount mounts a share and returns an SMBShare interface.
	Mount(shareName string) (SMBShare, error)
	// ListSharenames lists the shares the server exposes.
	ListSharenames() ([]string, error)
	// Logoff ends the session.
	Logoff() error
}

// SMBShare abstracts an SMB share for testability.
// This interface wraps the go-smb2 Share type.
type SMBShare interface {
	// OpenFile opens a file with the specified flags and permissions.
	OpenFile(name string, flag int, perm fs.FileMode) (SMBFile, error)
	// Stat returns file info for the specified path.
	Stat(name string) (fs.FileInfo, error)
	// Mkdir creates a directory.
	Mkdir(name string, perm fs.FileMode) error
	// Remove removes a file or empty directory.
	Remove(name string) error
	// Rename renames a file or directory.
	Rename(oldname, newname string) error
	// Umount unmounts the share.
	Umount() error
}

// SMBFile abstracts an SMB file handle for testability.
// This interface wraps the go-smb2 File type.
type SMBFile interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
	Stat() (fs.FileInfo, error)
	// Readdir reads the directory contents.
	Readdir(n int) ([]fs.FileInfo, error)
}

// ConnectionFactory opens SMB sessions against a file server.
// This abstraction allows injection of mock sessions for testing.
type ConnectionFactory interface {
	// Dial opens an authenticated session with the server at addr.
	Dial(ctx context.Context, addr string, config *Config) (SMBSession, error)
}
