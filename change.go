package fsxpath

import (
	"fmt"
	"strings"
)

// ChangeOption selects one component to replace in Path.Change.
type ChangeOption func(*changeSpec)

type changeSpec struct {
	absPath, dirPath, dirName, basename, fname, ext *string
}

// WithNewAbsPath replaces the whole path. It cannot be combined with any
// other option.
func WithNewAbsPath(s string) ChangeOption {
	return func(c *changeSpec) { c.absPath = &s }
}

// WithNewDirPath moves the entry into another directory, given as a full path.
func WithNewDirPath(s string) ChangeOption {
	return func(c *changeSpec) { c.dirPath = &s }
}

// WithNewDirName renames the parent directory in place.
func WithNewDirName(s string) ChangeOption {
	return func(c *changeSpec) { c.dirName = &s }
}

// WithNewBasename replaces the file name including its extension.
func WithNewBasename(s string) ChangeOption {
	return func(c *changeSpec) { c.basename = &s }
}

// WithNewFname replaces the file name and keeps the extension.
func WithNewFname(s string) ChangeOption {
	return func(c *changeSpec) { c.fname = &s }
}

// WithNewExt replaces the extension. A missing leading dot is added, so
// "txt" and ".txt" are the same; an empty string drops the extension.
func WithNewExt(s string) ChangeOption {
	if s != "" && !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return func(c *changeSpec) { c.ext = &s }
}

// Change returns a new path with the selected components replaced.
//
//	p := NewPath("fs", "share", "alice", "test.py")
//	p.Change(WithNewFname("test1"))  // \\fs\share\alice\test1.py
//	p.Change(WithNewExt(".txt"))     // \\fs\share\alice\test.txt
//	p.Change(WithNewDirName("bob"))  // \\fs\share\bob\test.py
//
// The new directory can come from WithNewDirPath or WithNewDirName, not
// both; the new name from WithNewBasename or from WithNewFname and
// WithNewExt, not both. Violations return an error wrapping
// ErrConflictingChange.
func (p *Path) Change(opts ...ChangeOption) (*Path, error) {
	var c changeSpec
	for _, opt := range opts {
		opt(&c)
	}

	if c.absPath != nil {
		if c.dirPath != nil || c.dirName != nil || c.basename != nil || c.fname != nil || c.ext != nil {
			return nil, changeConflict(p, "new abspath excludes every other argument")
		}
		np := NewPath(*c.absPath)
		np.client = p.client
		return np, nil
	}

	if c.dirPath != nil && c.dirName != nil {
		return nil, changeConflict(p, "cannot have both new dirpath and new dirname")
	}
	if c.basename != nil && (c.fname != nil || c.ext != nil) {
		return nil, changeConflict(p, "cannot have new basename with new fname or new ext")
	}

	var dir *Path
	switch {
	case c.dirPath != nil:
		dir = NewPath(*c.dirPath)
		dir.client = p.client
	case c.dirName != nil:
		dir = p.Parent().Parent().Join(*c.dirName)
	default:
		dir = p.Parent()
	}

	basename := p.Basename()
	if c.basename != nil {
		basename = *c.basename
	} else if c.fname != nil || c.ext != nil {
		fname, ext := p.Fname(), p.Ext()
		if c.fname != nil {
			fname = *c.fname
		}
		if c.ext != nil {
			ext = *c.ext
		}
		basename = fname + ext
	}

	return dir.Join(basename), nil
}

func changeConflict(p *Path, msg string) error {
	return wrapPathError("change", p.String(), fmt.Errorf("%w: %s", ErrConflictingChange, msg))
}
