package fsxpath

import (
	"fmt"
	"strings"
)

// ShareType represents the type of SMB share.
type ShareType uint32

const (
	// ShareTypeDisk represents a disk share (standard file share).
	ShareTypeDisk ShareType = 0x00000000

	// ShareTypePrintQueue represents a print queue share.
	ShareTypePrintQueue ShareType = 0x00000001

	// ShareTypeDevice represents a communication device share.
	ShareTypeDevice ShareType = 0x00000002

	// ShareTypeIPC represents an IPC share (named pipes).
	ShareTypeIPC ShareType = 0x00000003

	// ShareTypeSpecial represents special shares (admin shares: C$, IPC$, etc.).
	ShareTypeSpecial ShareType = 0x80000000

	// ShareTypeTemporary represents a temporary share.
	ShareTypeTemporary ShareType = 0x40000000
)

// String returns a human-readable string for the share type.
func (st ShareType) String() string {
	switch st {
	case ShareTypeDisk:
		return "Disk"
	case ShareTypePrintQueue:
		return "Print Queue"
	case ShareTypeDevice:
		return "Device"
	case ShareTypeIPC:
		return "IPC"
	case ShareTypeSpecial:
		return "Special"
	case ShareTypeTemporary:
		return "Temporary"
	default:
		return fmt.Sprintf("Unknown(%d)", st)
	}
}

// ShareInfo contains information about an SMB share.
type ShareInfo struct {
	Name string    // Share name
	Type ShareType // Share type
}

// ListShares returns the shares the file server exposes.
//
// go-smb2 enumerates share names over the srvsvc pipe but does not return
// their type, so the type is inferred from the name: IPC$ is the IPC
// share and other names ending in $ are administrative shares.
//
// Example:
//
//	shares, err := client.ListShares()
//	if err != nil {
//	    return err
//	}
//	for _, share := range shares {
//	    fmt.Printf("%s (%s)\n", share.Name, share.Type)
//	}
func (c *Client) ListShares() ([]ShareInfo, error) {
	if c.session == nil {
		return nil, ErrNotConnected
	}

	names, err := c.session.ListSharenames()
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	shares := make([]ShareInfo, 0, len(names))
	for _, name := range names {
		shares = append(shares, ShareInfo{Name: name, Type: shareTypeOf(name)})
	}
	return shares, nil
}

func shareTypeOf(name string) ShareType {
	switch {
	case strings.EqualFold(name, "IPC$"):
		return ShareTypeIPC
	case strings.HasSuffix(name, "$"):
		return ShareTypeSpecial
	default:
		return ShareTypeDisk
	}
}
