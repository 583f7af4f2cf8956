package fsxpath

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hirochachacha/go-smb2"
)

// NTSTATUS codes the server returns for common failures.
const (
	statusAccessDenied        = 0xC0000022
	statusObjectNameNotFound  = 0xC0000034
	statusObjectNameCollision = 0xC0000035
	statusObjectPathNotFound  = 0xC000003A
)

var (
	// ErrNotImplemented indicates a copy source, destination or entry kind
	// that has no implementation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotConnected indicates the client has no open SMB session.
	ErrNotConnected = errors.New("not connected")

	// ErrAuthenticationFailed indicates authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnsupportedAuth indicates an authentication protocol go-smb2 cannot speak.
	ErrUnsupportedAuth = errors.New("unsupported authentication protocol")

	// ErrDescribeFileSystem indicates the FSx file system could not be described.
	ErrDescribeFileSystem = errors.New("failed to get info from the FSx server")

	// ErrInvalidPath indicates the path is invalid.
	ErrInvalidPath = errors.New("invalid path")

	// ErrServerMismatch indicates a path addresses a different server than the client.
	ErrServerMismatch = errors.New("path server does not match client")

	// ErrNotDirectory indicates the path is not an existing directory.
	ErrNotDirectory = errors.New("not a directory or does not exist")

	// ErrNotFile indicates the path is not an existing file.
	ErrNotFile = errors.New("not a file or does not exist")

	// ErrIsDirectory indicates the path is a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrConflictingChange indicates mutually exclusive Change options were combined.
	ErrConflictingChange = errors.New("conflicting change arguments")

	// ErrNotRelative indicates a path is not under the requested ancestor.
	ErrNotRelative = errors.New("path is not relative to ancestor")

	// ErrNoExtensions indicates an extension filter was requested without extensions.
	ErrNoExtensions = errors.New("at least one extension is required")

	// ErrNoItems indicates a selection produced nothing when one item was required.
	ErrNoItems = errors.New("selection is empty")

	// ErrInvalidHashOption indicates a negative byte count or a chunk size below one.
	ErrInvalidHashOption = errors.New("invalid hash option")
)

// PathError records an error and the operation and path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// wrapPathError wraps an error with operation and path information.
func wrapPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	// If it's already a PathError for the same path, don't double-wrap
	var pe *PathError
	if errors.As(err, &pe) && pe.Path == path {
		return err
	}

	return &PathError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// convertError converts package errors and SMB status codes to fs package
// errors where a standard equivalent exists. The original error stays in the chain.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrInvalid) ||
		errors.Is(err, fs.ErrClosed) {
		return err
	}

	var re *smb2.ResponseError
	if errors.As(err, &re) {
		switch re.Code {
		case statusObjectNameNotFound, statusObjectPathNotFound:
			return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
		case statusObjectNameCollision:
			return fmt.Errorf("%w: %w", fs.ErrExist, err)
		case statusAccessDenied:
			return fmt.Errorf("%w: %w", fs.ErrPermission, err)
		}
	}

	switch {
	case errors.Is(err, ErrNotConnected):
		return fmt.Errorf("%w: %w", fs.ErrClosed, err)
	case errors.Is(err, ErrInvalidPath):
		return fmt.Errorf("%w: %w", fs.ErrInvalid, err)
	case errors.Is(err, ErrAuthenticationFailed):
		return fmt.Errorf("%w: %w", fs.ErrPermission, err)
	}

	return err
}

// netError interface for network errors.
type netError interface {
	Timeout() bool
	Temporary() bool
}

// isRetryable returns true if the error indicates a transient failure
// that might succeed if retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr netError
	if errors.As(err, &netErr) {
		if netErr.Temporary() || netErr.Timeout() {
			return true
		}
	}

	if errors.Is(err, ErrNotConnected) {
		return true
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != nil && unwrapped != err {
		return isRetryable(unwrapped)
	}

	return false
}

// isNotExist reports whether err means the entry does not exist.
func isNotExist(err error) bool {
	return errors.Is(convertError(err), fs.ErrNotExist)
}
