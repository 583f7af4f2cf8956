package fsxpath

import (
	"strings"
)

// uncPrefix starts every absolute path.
const uncPrefix = `\\`

// Path is a Windows UNC path on an FSx file server: a server name followed
// by an ordered list of segments, always rendered with backslashes.
//
// Derived values (Parent, Name, Stem, Suffix and so on) are pure functions
// of the segments. Paths returned by those methods keep the client binding
// of the receiver but start with an empty stat cache.
//
// A Path is not safe for concurrent use.
type Path struct {
	server   string
	parts    []string
	relative bool

	client *Client
	stat   *StatSnapshot
}

// NewPath builds an absolute path. The first segment is the server; later
// elements may themselves contain separators. Both \ and / are accepted.
//
//	NewPath("fs.corp.example.com", "share", `reports\2024`, "q1.csv")
//	// \\fs.corp.example.com\share\reports\2024\q1.csv
func NewPath(elem ...string) *Path {
	segs := resolveSegments(nil, 1, elem...)
	p := &Path{}
	if len(segs) > 0 {
		p.server = segs[0]
		p.parts = segs[1:]
	}
	return p
}

// Parse parses a UNC path string such as \\server\share\dir\file.txt.
// The leading \\ (or //) is required; NewPath is the lenient form.
func Parse(s string) (*Path, error) {
	if err := validatePath(s); err != nil {
		return nil, wrapPathError("parse", s, err)
	}
	if len(s) < 2 || !isSeparator(rune(s[0])) || !isSeparator(rune(s[1])) {
		return nil, wrapPathError("parse", s, ErrInvalidPath)
	}
	p := NewPath(s)
	if p.server == "" {
		return nil, wrapPathError("parse", s, ErrInvalidPath)
	}
	return p, nil
}

// resolveSegments appends elements to segs, splitting on both separators
// and resolving "." and ".." lexically. ".." never drops below floor
// segments, which keeps the server of an absolute path in place.
func resolveSegments(segs []string, floor int, elem ...string) []string {
	for _, e := range elem {
		for _, s := range strings.FieldsFunc(e, isSeparator) {
			switch s {
			case ".":
			case "..":
				if len(segs) > floor {
					segs = segs[:len(segs)-1]
				}
			default:
				segs = append(segs, s)
			}
		}
	}
	return segs
}

func isSeparator(r rune) bool {
	return r == '\\' || r == '/'
}

// validatePath rejects strings that can never name an SMB entry.
func validatePath(p string) error {
	if strings.TrimFunc(p, isSeparator) == "" {
		return ErrInvalidPath
	}
	if strings.Contains(p, "\x00") {
		return ErrInvalidPath
	}
	return nil
}

func (p *Path) derive(server string, parts []string, relative bool) *Path {
	return &Path{
		server:   server,
		parts:    parts,
		relative: relative,
		client:   p.client,
	}
}

// IsAbsolute reports whether the path is rooted at a server. Only
// RelativeTo produces relative paths.
func (p *Path) IsAbsolute() bool {
	return !p.relative
}

// String renders the path, \\server\a\b for absolute paths and a\b for
// relative ones.
func (p *Path) String() string {
	if p.relative {
		return strings.Join(p.parts, `\`)
	}
	if len(p.parts) == 0 {
		return uncPrefix + p.server
	}
	return uncPrefix + p.server + `\` + strings.Join(p.parts, `\`)
}

// AbsPath is the full path as a string.
func (p *Path) AbsPath() string {
	return p.String()
}

// URI renders the path as a Location.
func (p *Path) URI() string {
	return p.String()
}

// Server returns the server segment, empty for relative paths.
func (p *Path) Server() string {
	return p.server
}

// Share returns the share segment, empty when the path names the server
// itself or is relative.
func (p *Path) Share() string {
	if p.relative || len(p.parts) == 0 {
		return ""
	}
	return p.parts[0]
}

// Parts returns a copy of the segments after the server.
func (p *Path) Parts() []string {
	out := make([]string, len(p.parts))
	copy(out, p.parts)
	return out
}

// Client returns the client the path is bound to, or nil.
func (p *Path) Client() *Client {
	return p.client
}

// Parent returns the containing directory. The parent of a server root is
// the root itself.
func (p *Path) Parent() *Path {
	if len(p.parts) == 0 {
		return p.derive(p.server, nil, p.relative)
	}
	return p.derive(p.server, cloneParts(p.parts[:len(p.parts)-1]), p.relative)
}

// Name returns the final segment, empty for a server root.
func (p *Path) Name() string {
	if len(p.parts) == 0 {
		return ""
	}
	return p.parts[len(p.parts)-1]
}

// Basename is the file name with extension.
func (p *Path) Basename() string {
	return p.Name()
}

// Suffix returns the extension of the final segment including the dot.
// Names that start or end with the only dot have no suffix.
func (p *Path) Suffix() string {
	name := p.Name()
	i := strings.LastIndexByte(name, '.')
	if i > 0 && i < len(name)-1 {
		return name[i:]
	}
	return ""
}

// Ext is an alias for Suffix.
func (p *Path) Ext() string {
	return p.Suffix()
}

// Stem returns the final segment without its suffix.
func (p *Path) Stem() string {
	return strings.TrimSuffix(p.Name(), p.Suffix())
}

// Fname is an alias for Stem.
func (p *Path) Fname() string {
	return p.Stem()
}

// DirPath is the parent directory as a string.
func (p *Path) DirPath() string {
	return p.Parent().String()
}

// DirName is the name of the parent directory.
func (p *Path) DirName() string {
	return p.Parent().Name()
}

// Join appends elements to the path.
func (p *Path) Join(elem ...string) *Path {
	parts := resolveSegments(cloneParts(p.parts), 0, elem...)
	return p.derive(p.server, parts, p.relative)
}

// JoinPath appends the segments of a relative path.
func (p *Path) JoinPath(rel *Path) *Path {
	parts := cloneParts(p.parts)
	if !rel.relative {
		parts = append(parts, rel.server)
	}
	parts = append(parts, rel.parts...)
	return p.derive(p.server, parts, p.relative)
}

// RelativeTo returns the path of p below ancestor. Comparison is
// case-insensitive, as on Windows. A path is relative to itself.
func (p *Path) RelativeTo(ancestor *Path) (*Path, error) {
	if p.relative != ancestor.relative ||
		!strings.EqualFold(p.server, ancestor.server) ||
		len(ancestor.parts) > len(p.parts) {
		return nil, wrapPathError("relative", p.String(), ErrNotRelative)
	}
	for i, s := range ancestor.parts {
		if !strings.EqualFold(s, p.parts[i]) {
			return nil, wrapPathError("relative", p.String(), ErrNotRelative)
		}
	}
	return p.derive("", cloneParts(p.parts[len(ancestor.parts):]), true), nil
}

// Equal reports whether two paths name the same entry, ignoring case.
func (p *Path) Equal(other *Path) bool {
	if other == nil || p.relative != other.relative ||
		!strings.EqualFold(p.server, other.server) ||
		len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if !strings.EqualFold(p.parts[i], other.parts[i]) {
			return false
		}
	}
	return true
}

// toSMBPath returns the path inside its share in go-smb2 form: backslash
// separated, no leading separator, empty for the share root.
func (p *Path) toSMBPath() string {
	if len(p.parts) <= 1 {
		return ""
	}
	return strings.Join(p.parts[1:], `\`)
}

func cloneParts(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, len(parts))
	copy(out, parts)
	return out
}
