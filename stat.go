package fsxpath

import (
	"hash/fnv"
	"io/fs"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hirochachacha/go-smb2"
)

// Kind classifies a directory entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileTimes holds the four timestamp families SMB keeps per entry.
type FileTimes struct {
	Access   time.Time
	Write    time.Time
	Creation time.Time
	Change   time.Time
}

// windowsStat is implemented by FileInfo.Sys values that carry SMB
// metadata beyond fs.FileInfo. The mock backend uses it.
type windowsStat interface {
	FileAttributes() Attributes
	FileTimes() FileTimes
}

// StatSnapshot is the metadata of one path, fetched once.
type StatSnapshot struct {
	Name       string
	Kind       Kind
	Size       int64
	Mode       fs.FileMode
	Attributes Attributes
	FileTimes

	// Dev identifies the share the entry lives on.
	Dev uint64
}

// ModTime is the last write time.
func (s *StatSnapshot) ModTime() time.Time {
	return s.Write
}

// IsHidden reports the HIDDEN attribute.
func (s *StatSnapshot) IsHidden() bool { return s.Attributes.Has(AttrHidden) }

// IsSystem reports the SYSTEM attribute.
func (s *StatSnapshot) IsSystem() bool { return s.Attributes.Has(AttrSystem) }

// IsReadOnly reports the READONLY attribute.
func (s *StatSnapshot) IsReadOnly() bool { return s.Attributes.Has(AttrReadOnly) }

// IsArchive reports the ARCHIVE attribute.
func (s *StatSnapshot) IsArchive() bool { return s.Attributes.Has(AttrArchive) }

// SizeForHuman renders Size in IEC units, e.g. "12 B" or "1.5 KiB".
func (s *StatSnapshot) SizeForHuman() string {
	return humanize.IBytes(uint64(s.Size))
}

// newStatSnapshot converts a go-smb2 (or mock) FileInfo.
func newStatSnapshot(info fs.FileInfo, dev uint64) *StatSnapshot {
	s := &StatSnapshot{
		Name: info.Name(),
		Size: info.Size(),
		Mode: info.Mode(),
		Dev:  dev,
	}

	var attrs Attributes
	switch st := info.(type) {
	case *smb2.FileStat:
		attrs = Attributes(st.FileAttributes)
		s.FileTimes = FileTimes{
			Access:   st.LastAccessTime,
			Write:    st.LastWriteTime,
			Creation: st.CreationTime,
			Change:   st.ChangeTime,
		}
	default:
		if ws, ok := info.Sys().(windowsStat); ok {
			attrs = ws.FileAttributes()
			s.FileTimes = ws.FileTimes()
		} else {
			attrs = attributesFromMode(info.Mode())
			mt := info.ModTime()
			s.FileTimes = FileTimes{Access: mt, Write: mt, Creation: mt, Change: mt}
		}
	}

	s.Attributes = attrs
	s.Kind = kindOf(info.Mode(), attrs)
	return s
}

// kindOf resolves the entry kind once from mode bits and attributes.
func kindOf(mode fs.FileMode, attrs Attributes) Kind {
	switch {
	case mode&fs.ModeSymlink != 0 || attrs.Has(AttrReparsePoint):
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindFile
	default:
		return KindUnknown
	}
}

// deviceID derives a stable device number for a share.
func deviceID(server, share string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(uncPrefix + server + `\` + share)))
	return h.Sum64()
}
