package fsxpath

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Connect opens the SMB session. Dialing is bounded by ctx and by
// Config.ConnTimeout, and retried according to Config.RetryPolicy.
// Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.session != nil {
		return nil
	}

	addr := c.dialAddr()
	var session SMBSession
	err := c.withRetry(ctx, "connect", func() error {
		s, err := c.factory.Dial(ctx, addr, c.config)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	c.session = session
	c.shares = make(map[string]SMBShare)

	c.logger.Info("connected",
		zap.String("server", c.Server()),
		zap.String("addr", addr),
		zap.String("user", c.config.Username))
	return nil
}

// Connected reports whether the client holds an open session.
func (c *Client) Connected() bool {
	return c.session != nil
}

// Close unmounts every mounted share and logs off. Closing a client that
// is not connected is a no-op.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}

	names := make([]string, 0, len(c.shares))
	for name := range c.shares {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := c.shares[name].Umount(); err != nil {
			errs = append(errs, fmt.Errorf("umount %s: %w", name, err))
		}
	}
	if err := c.session.Logoff(); err != nil {
		errs = append(errs, fmt.Errorf("logoff: %w", err))
	}

	c.session = nil
	c.shares = nil

	c.logger.Info("disconnected", zap.String("server", c.Server()))
	return errors.Join(errs...)
}

// WithSession connects, runs fn and closes the session, even when fn fails.
// The error from fn takes precedence over the error from Close.
func (c *Client) WithSession(ctx context.Context, fn func(c *Client) error) (err error) {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// share returns the mounted share, mounting it on first use.
func (c *Client) share(name string) (SMBShare, error) {
	key := strings.ToLower(name)
	if sh, ok := c.shares[key]; ok {
		return sh, nil
	}

	sh, err := c.session.Mount(name)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", name, err)
	}
	c.shares[key] = sh

	c.logger.Debug("mounted share", zap.String("share", name))
	return sh, nil
}
