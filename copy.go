package fsxpath

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Location is one end of a copy: a remote *Path, a LocalPath or an
// ObjectPath. No other implementations exist.
type Location interface {
	URI() string
	location()
}

func (p *Path) location() {}

// CopyFrom copies src onto p. See Copy.
func (p *Path) CopyFrom(ctx context.Context, src Location) error {
	return Copy(ctx, src, p)
}

// CopyTo copies p onto dst. See Copy.
func (p *Path) CopyTo(ctx context.Context, dst Location) error {
	return Copy(ctx, p, dst)
}

// Copy copies a file or a directory tree between the FSx share and a
// local filesystem or S3. One end must be a remote *Path.
//
// A file is streamed to dst. When dst is an S3 prefix the object key is
// the prefix plus the file name. A directory is walked, its skeleton
// recreated under dst and every file streamed; S3 sources derive the
// skeleton from the keys below the prefix and skip "/" marker objects.
// Existing destinations are overwritten. The first error stops the copy.
//
// Unsupported pairs, and sources that are neither file nor directory,
// fail with ErrNotImplemented.
func Copy(ctx context.Context, src, dst Location) error {
	_, srcRemote := src.(*Path)
	_, dstRemote := dst.(*Path)
	if !srcRemote && !dstRemote {
		return fmt.Errorf("%w: copy from %T to %T", ErrNotImplemented, src, dst)
	}

	logger := copyLogger(src, dst)

	kind, err := sourceKind(src)
	if err != nil {
		return err
	}

	switch kind {
	case KindFile:
		logger.Info("copy file", zap.String("src", src.URI()), zap.String("dst", dst.URI()))
		return copyFile(ctx, src, dst)
	case KindDirectory:
		logger.Info("copy directory", zap.String("src", src.URI()), zap.String("dst", dst.URI()))
		return copyTree(ctx, logger, src, dst)
	default:
		return wrapPathError("copy", src.URI(), fmt.Errorf("%w: source is a %s", ErrNotImplemented, kind))
	}
}

func copyLogger(locs ...Location) *zap.Logger {
	for _, l := range locs {
		if p, ok := l.(*Path); ok && p.client != nil {
			return p.client.logger
		}
	}
	return zap.NewNop()
}

func sourceKind(src Location) (Kind, error) {
	switch s := src.(type) {
	case *Path:
		return s.Kind()
	case LocalPath:
		return s.Kind()
	case ObjectPath:
		if s.IsDir() {
			return KindDirectory, nil
		}
		return KindFile, nil
	default:
		return KindUnknown, fmt.Errorf("%w: source %T", ErrNotImplemented, src)
	}
}

func locationName(l Location) string {
	switch v := l.(type) {
	case *Path:
		return v.Name()
	case LocalPath:
		return v.Name()
	case ObjectPath:
		return v.Name()
	}
	return ""
}

func copyFile(ctx context.Context, src, dst Location) error {
	switch d := dst.(type) {
	case *Path:
		if err := d.Parent().MkdirAll(); err != nil {
			return err
		}
	case ObjectPath:
		if d.IsDir() {
			dst = d.Join(locationName(src))
		}
	}

	source, err := newCopySource(src, false)
	if err != nil {
		return err
	}
	sink, err := newCopySink(dst, false)
	if err != nil {
		return err
	}
	return transfer(ctx, source, sink, nil)
}

func copyTree(ctx context.Context, logger *zap.Logger, src, dst Location) error {
	source, err := newCopySource(src, true)
	if err != nil {
		return err
	}
	sink, err := newCopySink(dst, true)
	if err != nil {
		return err
	}

	dirs, files, err := source.tree(ctx)
	if err != nil {
		return err
	}

	if err := sink.mkdir(ctx, nil); err != nil {
		return err
	}
	for _, rel := range dirs {
		if err := sink.mkdir(ctx, rel); err != nil {
			return err
		}
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("copy entry", zap.String("path", strings.Join(rel, "/")))
		if err := transfer(ctx, source, sink, rel); err != nil {
			return err
		}
	}

	logger.Info("copy directory done",
		zap.String("src", src.URI()),
		zap.Int("dirs", len(dirs)),
		zap.Int("files", len(files)))
	return nil
}

func transfer(ctx context.Context, source copySource, sink copySink, rel []string) error {
	r, err := source.open(ctx, rel)
	if err != nil {
		return err
	}
	defer r.Close()
	return sink.write(ctx, rel, r)
}

// copySource reads a file or tree. rel is relative to the source root;
// nil addresses the root itself.
type copySource interface {
	tree(ctx context.Context) (dirs, files [][]string, err error)
	open(ctx context.Context, rel []string) (io.ReadCloser, error)
}

// copySink writes a file or tree. rel is relative to the destination root.
type copySink interface {
	mkdir(ctx context.Context, rel []string) error
	write(ctx context.Context, rel []string, r io.Reader) error
}

func newCopySource(l Location, dir bool) (copySource, error) {
	switch v := l.(type) {
	case *Path:
		return remoteSource{root: v}, nil
	case LocalPath:
		return localSource{root: v}, nil
	case ObjectPath:
		if dir {
			v = v.asDir()
		}
		return objectSource{root: v}, nil
	}
	return nil, fmt.Errorf("%w: source %T", ErrNotImplemented, l)
}

func newCopySink(l Location, dir bool) (copySink, error) {
	switch v := l.(type) {
	case *Path:
		return remoteSink{root: v}, nil
	case LocalPath:
		return localSink{root: v}, nil
	case ObjectPath:
		if dir {
			v = v.asDir()
		}
		return objectSink{root: v}, nil
	}
	return nil, fmt.Errorf("%w: destination %T", ErrNotImplemented, l)
}

type remoteSource struct{ root *Path }

func (s remoteSource) tree(ctx context.Context) (dirs, files [][]string, err error) {
	w := &walker{root: s.root, spec: selectSpec{files: true, dirs: true, recursive: true, followDirLinks: true}}
	for {
		it, err := w.next()
		if err != nil {
			return nil, nil, err
		}
		if it.path == nil {
			return dirs, files, nil
		}
		rel, err := it.path.RelativeTo(s.root)
		if err != nil {
			return nil, nil, err
		}
		switch it.kind {
		case KindDirectory:
			dirs = append(dirs, rel.Parts())
		case KindFile:
			files = append(files, rel.Parts())
		default:
			return nil, nil, wrapPathError("copy", it.path.String(), fmt.Errorf("%w: entry is a %s", ErrNotImplemented, it.kind))
		}
	}
}

func (s remoteSource) open(ctx context.Context, rel []string) (io.ReadCloser, error) {
	return s.root.Join(rel...).openReader()
}

type remoteSink struct{ root *Path }

func (s remoteSink) mkdir(ctx context.Context, rel []string) error {
	return s.root.Join(rel...).MkdirAll()
}

func (s remoteSink) write(ctx context.Context, rel []string, r io.Reader) (err error) {
	f, err := s.root.Join(rel...).Create()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

type localSource struct{ root LocalPath }

func (s localSource) tree(ctx context.Context) (dirs, files [][]string, err error) {
	return s.root.walk()
}

func (s localSource) open(ctx context.Context, rel []string) (io.ReadCloser, error) {
	return s.root.Join(rel...).Open()
}

type localSink struct{ root LocalPath }

func (s localSink) mkdir(ctx context.Context, rel []string) error {
	return s.root.Join(rel...).MkdirAll()
}

func (s localSink) write(ctx context.Context, rel []string, r io.Reader) (err error) {
	f, err := s.root.Join(rel...).Create()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

type objectSource struct{ root ObjectPath }

// tree turns the keys below the prefix into files and the directories
// that contain them. Keys ending in "/" are folder markers and skipped.
func (s objectSource) tree(ctx context.Context) (dirs, files [][]string, err error) {
	keys, err := s.root.ListKeys(ctx)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, s.root.key)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		segs := strings.Split(rel, "/")
		if !safeSegments(segs) {
			return nil, nil, wrapPathError("copy", s.root.URI(), fmt.Errorf("%w: key %q leaves the prefix", ErrInvalidPath, key))
		}
		for i := 1; i < len(segs); i++ {
			d := strings.Join(segs[:i], "/")
			if !seen[d] {
				seen[d] = true
				dirs = append(dirs, segs[:i:i])
			}
		}
		files = append(files, segs)
	}
	return dirs, files, nil
}

// safeSegments rejects key remainders whose segments would resolve
// outside the destination when joined.
func safeSegments(segs []string) bool {
	for _, seg := range segs {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, '\\') {
			return false
		}
	}
	return true
}

func (s objectSource) open(ctx context.Context, rel []string) (io.ReadCloser, error) {
	return s.root.Join(rel...).Open(ctx)
}

type objectSink struct{ root ObjectPath }

// mkdir is a no-op: prefixes exist once an object lives below them.
func (s objectSink) mkdir(ctx context.Context, rel []string) error {
	return nil
}

func (s objectSink) write(ctx context.Context, rel []string, r io.Reader) error {
	body, size, err := seekableBody(r)
	if err != nil {
		return err
	}
	return s.root.Join(rel...).Put(ctx, body, size)
}

// seekableBody returns r as a seeker along with its remaining length,
// buffering readers that cannot seek.
func seekableBody(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return rs, end - start, nil
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b), int64(len(b)), nil
}
