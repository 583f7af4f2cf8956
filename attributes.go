package fsxpath

import (
	"io/fs"
	"strings"
)

// Attributes is the FILE_ATTRIBUTE_* bit set (MS-FSCC 2.6) the file
// server reports for an entry.
type Attributes uint32

const (
	AttrReadOnly          Attributes = 0x00000001
	AttrHidden            Attributes = 0x00000002
	AttrSystem            Attributes = 0x00000004
	AttrDirectory         Attributes = 0x00000010
	AttrArchive           Attributes = 0x00000020
	AttrDevice            Attributes = 0x00000040
	AttrNormal            Attributes = 0x00000080
	AttrTemporary         Attributes = 0x00000100
	AttrSparse            Attributes = 0x00000200
	AttrReparsePoint      Attributes = 0x00000400 // symlink, junction or DFS link
	AttrCompressed        Attributes = 0x00000800
	AttrOffline           Attributes = 0x00001000
	AttrNotContentIndexed Attributes = 0x00002000
	AttrEncrypted         Attributes = 0x00004000
)

var attributeNames = []struct {
	bit  Attributes
	name string
}{
	{AttrReadOnly, "ReadOnly"},
	{AttrHidden, "Hidden"},
	{AttrSystem, "System"},
	{AttrDirectory, "Directory"},
	{AttrArchive, "Archive"},
	{AttrDevice, "Device"},
	{AttrTemporary, "Temporary"},
	{AttrSparse, "Sparse"},
	{AttrReparsePoint, "ReparsePoint"},
	{AttrCompressed, "Compressed"},
	{AttrOffline, "Offline"},
	{AttrNotContentIndexed, "NotContentIndexed"},
	{AttrEncrypted, "Encrypted"},
}

// Has reports whether every bit of want is set.
func (a Attributes) Has(want Attributes) bool {
	return a&want == want
}

// String joins the names of the set flags with "|", e.g. "Hidden|Archive".
// An entry with no flag besides NORMAL prints "Normal".
func (a Attributes) String() string {
	var names []string
	for _, n := range attributeNames {
		if a.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "Normal"
	}
	return strings.Join(names, "|")
}

// attributesFromMode synthesizes attributes for entries that arrive as a
// plain fs.FileInfo. Only what the mode bits can express is set.
func attributesFromMode(mode fs.FileMode) Attributes {
	var a Attributes
	switch {
	case mode.IsDir():
		a |= AttrDirectory
	case mode&fs.ModeSymlink != 0:
		a |= AttrReparsePoint
	case mode&(fs.ModeDevice|fs.ModeCharDevice) != 0:
		a |= AttrDevice
	case mode.IsRegular():
		a |= AttrArchive
	}
	if mode&0o222 == 0 {
		a |= AttrReadOnly
	}
	if a == 0 {
		a = AttrNormal
	}
	return a
}
