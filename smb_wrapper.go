package fsxpath

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/hirochachacha/go-smb2"
)

// dialectSMB300 pins negotiation to SMB 3.0, the first dialect with
// encryption.
const dialectSMB300 = 0x0300

// realSMBSession wraps a go-smb2 Session to implement SMBSession.
type realSMBSession struct {
	session *smb2.Session
	conn    net.Conn
}

// Mount mounts a share and returns an SMBShare interface.
func (s *realSMBSession) Mount(shareName string) (SMBShare, error) {
	share, err := s.session.Mount(shareName)
	if err != nil {
		return nil, err
	}
	return &realSMBShare{share: share}, nil
}

func (s *realSMBSession) ListSharenames() ([]string, error) {
	return s.session.ListSharenames()
}

// Logoff ends the session and closes the TCP connection.
func (s *realSMBSession) Logoff() error {
	err := s.session.Logoff()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// realSMBShare wraps a go-smb2 Share to implement SMBShare.
type realSMBShare struct {
	share *smb2.Share
}

func (sh *realSMBShare) OpenFile(name string, flag int, perm fs.FileMode) (SMBFile, error) {
	file, err := sh.share.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (sh *realSMBShare) Stat(name string) (fs.FileInfo, error) {
	return sh.share.Stat(name)
}

func (sh *realSMBShare) Mkdir(name string, perm fs.FileMode) error {
	return sh.share.Mkdir(name, perm)
}

func (sh *realSMBShare) Remove(name string) error {
	return sh.share.Remove(name)
}

func (sh *realSMBShare) Rename(oldname, newname string) error {
	return sh.share.Rename(oldname, newname)
}

func (sh *realSMBShare) Umount() error {
	return sh.share.Umount()
}

// RealConnectionFactory implements ConnectionFactory using go-smb2 over TCP.
type RealConnectionFactory struct{}

// Dial connects to addr and authenticates with the directory service
// credentials in config. The whole exchange is bounded by ConnTimeout.
func (f *RealConnectionFactory) Dial(ctx context.Context, addr string, config *Config) (SMBSession, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ConnTimeout)
	defer cancel()

	dialer := &net.Dialer{
		Timeout: config.ConnTimeout,
	}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	d := &smb2.Dialer{
		Negotiator: smb2.Negotiator{
			RequireMessageSigning: !config.DisableSigning,
		},
		Initiator: &smb2.NTLMInitiator{
			User:     config.Username,
			Password: config.Password,
			Domain:   config.Domain,
		},
	}
	if config.Encrypt {
		d.Negotiator.SpecifiedDialect = dialectSMB300
	}

	session, err := d.Dial(netConn)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("%w: SMB session setup failed: %w", ErrAuthenticationFailed, err)
	}

	_ = netConn.SetDeadline(time.Time{})

	return &realSMBSession{session: session, conn: netConn}, nil
}
