package fsxpath

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// SelectOption configures Path.Select.
type SelectOption func(*selectSpec)

type selectSpec struct {
	files     bool
	dirs      bool
	recursive bool

	// followDirLinks treats reparse points that report a directory
	// (junctions, directory symlinks) as directories and descends into them.
	followDirLinks bool
}

// maxLinkDepth bounds how many directory links one branch of a walk
// may cross before it is taken for a loop.
const maxLinkDepth = 40

// IncludeFiles controls whether files (and other non-directory entries)
// are yielded. Default true.
func IncludeFiles(b bool) SelectOption {
	return func(s *selectSpec) { s.files = b }
}

// IncludeDirs controls whether directories are yielded. Default true.
func IncludeDirs(b bool) SelectOption {
	return func(s *selectSpec) { s.dirs = b }
}

// Recursive controls whether subdirectories are walked. Default true.
func Recursive(b bool) SelectOption {
	return func(s *selectSpec) { s.recursive = b }
}

// Select enumerates the entries below p.
//
// The walk is breadth first. Within one directory subdirectories come
// before files, each group ordered by name ignoring case. Nothing is
// read until the selection is consumed. p must be an existing directory,
// otherwise the selection fails with ErrNotDirectory.
//
// In a shallow selection that asks for only files or only directories, an
// entry that is neither fails the selection with ErrNotImplemented.
func (p *Path) Select(opts ...SelectOption) *Selection {
	spec := selectSpec{files: true, dirs: true, recursive: true}
	for _, opt := range opts {
		opt(&spec)
	}
	w := &walker{root: p, spec: spec}
	return newSelection(w.pull)
}

// SelectFile enumerates files only.
func (p *Path) SelectFile(recursive bool) *Selection {
	return p.Select(IncludeDirs(false), Recursive(recursive))
}

// SelectDir enumerates directories only.
func (p *Path) SelectDir(recursive bool) *Selection {
	return p.Select(IncludeFiles(false), Recursive(recursive))
}

// SelectByExt enumerates files whose extension is one of exts.
func (p *Path) SelectByExt(recursive bool, exts ...string) *Selection {
	return p.SelectFile(recursive).FilterByExt(exts...)
}

// walkItem is one entry produced by a walk.
type walkItem struct {
	path *Path
	kind Kind
	// links counts the directory links crossed to reach path.
	links int
}

// walker produces the entries of a breadth-first walk one at a time.
type walker struct {
	root    *Path
	spec    selectSpec
	started bool
	queue   []walkItem
	pending []walkItem
}

func (w *walker) pull() (*Path, error) {
	it, err := w.next()
	return it.path, err
}

// next returns the next entry, or a zero item at the end of the walk.
func (w *walker) next() (walkItem, error) {
	if !w.started {
		w.started = true
		k, err := w.root.Kind()
		if err != nil && !isNotExist(err) {
			return walkItem{}, err
		}
		if k != KindDirectory {
			return walkItem{}, wrapPathError("select", w.root.String(), ErrNotDirectory)
		}
		w.queue = []walkItem{{path: w.root, kind: KindDirectory}}
	}

	for len(w.pending) == 0 {
		if len(w.queue) == 0 {
			return walkItem{}, nil
		}
		dir := w.queue[0]
		w.queue = w.queue[1:]
		if err := w.list(dir); err != nil {
			return walkItem{}, err
		}
	}

	next := w.pending[0]
	w.pending = w.pending[1:]
	return next, nil
}

// list reads one directory into pending and queues its subdirectories.
func (w *walker) list(parent walkItem) error {
	dir := parent.path
	entries, err := dir.readDir()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	singleKind := w.spec.files != w.spec.dirs
	var dirs, files []walkItem
	for _, e := range entries {
		it := walkItem{path: dir.Join(e.Name()), kind: e.kind(), links: parent.links}
		if it.kind == KindSymlink && w.spec.followDirLinks && e.IsDir() {
			it.kind = KindDirectory
			it.links++
			if it.links > maxLinkDepth {
				return wrapPathError("select", it.path.String(), errSymlinkLoop)
			}
		}
		switch it.kind {
		case KindDirectory:
			dirs = append(dirs, it)
		case KindFile:
			files = append(files, it)
		default:
			if !w.spec.recursive && singleKind {
				return wrapPathError("select", it.path.String(), fmt.Errorf("%w: entry is neither file nor directory", ErrNotImplemented))
			}
			files = append(files, it)
		}
	}

	if w.spec.recursive {
		w.queue = append(w.queue, dirs...)
	}
	if w.spec.dirs {
		w.pending = append(w.pending, dirs...)
	}
	if w.spec.files {
		w.pending = append(w.pending, files...)
	}
	return nil
}

// Selection is a lazy, single-pass sequence of paths. It cannot be
// restarted; every consuming method continues where the previous one
// stopped.
//
//	sel := dir.SelectFile(true)
//	for sel.Next() {
//	    fmt.Println(sel.Path())
//	}
//	if err := sel.Err(); err != nil {
//	    return err
//	}
type Selection struct {
	pull func() (*Path, error)
	cur  *Path
	err  error
	done bool
}

func newSelection(pull func() (*Path, error)) *Selection {
	return &Selection{pull: pull}
}

// Next advances to the next path. It returns false at the end of the
// sequence or on the first error.
func (s *Selection) Next() bool {
	if s.done {
		return false
	}
	p, err := s.pull()
	if err != nil {
		s.err = err
	}
	if err != nil || p == nil {
		s.done = true
		s.cur = nil
		return false
	}
	s.cur = p
	return true
}

// Path is the current path after a successful Next.
func (s *Selection) Path() *Path {
	return s.cur
}

// Err is the error that stopped the sequence, if any.
func (s *Selection) Err() error {
	return s.err
}

// All consumes the rest of the sequence.
func (s *Selection) All() ([]*Path, error) {
	var out []*Path
	for s.Next() {
		out = append(out, s.cur)
	}
	return out, s.err
}

// One consumes the next path. An exhausted selection fails with ErrNoItems.
func (s *Selection) One() (*Path, error) {
	if s.Next() {
		return s.cur, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, ErrNoItems
}

// OneOrNone consumes the next path, returning nil when exhausted.
func (s *Selection) OneOrNone() (*Path, error) {
	if s.Next() {
		return s.cur, nil
	}
	return nil, s.err
}

// Many consumes up to k paths.
func (s *Selection) Many(k int) ([]*Path, error) {
	var out []*Path
	for len(out) < k && s.Next() {
		out = append(out, s.cur)
	}
	return out, s.err
}

// Iter adapts the rest of the sequence to a range-over-func iterator. An
// error is yielded once, with a nil path, and ends the iteration.
func (s *Selection) Iter() iter.Seq2[*Path, error] {
	return func(yield func(*Path, error) bool) {
		for s.Next() {
			if !yield(s.cur, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

// Filter returns a selection of the remaining paths for which keep
// returns true. Both selections share the same underlying walk.
func (s *Selection) Filter(keep func(*Path) bool) *Selection {
	return newSelection(func() (*Path, error) {
		for s.Next() {
			if keep(s.cur) {
				return s.cur, nil
			}
		}
		return nil, s.err
	})
}

// FilterByExt keeps paths whose extension matches one of exts, ignoring
// case. At least one extension is required; otherwise every read from the
// returned selection fails with ErrNoExtensions.
func (s *Selection) FilterByExt(exts ...string) *Selection {
	if len(exts) == 0 {
		return newSelection(func() (*Path, error) {
			return nil, ErrNoExtensions
		})
	}
	valid := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		valid[strings.ToLower(ext)] = struct{}{}
	}
	return s.Filter(func(p *Path) bool {
		_, ok := valid[strings.ToLower(p.Ext())]
		return ok
	})
}
