package fsxpath

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/fsx"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Client talks to one FSx for Windows file system. It holds the file
// system description, the SMB session once connected, and the S3 client
// used for object paths.
//
// A Client is not safe for concurrent use.
type Client struct {
	config  *Config
	fs      FileSystemDescriptor
	factory ConnectionFactory
	objects ObjectAPI
	logger  *zap.Logger

	session SMBSession
	shares  map[string]SMBShare // keyed by lower-case share name
}

// New describes the configured file system through the FSx API and
// returns a client ready to Connect.
//
// Example:
//
//	client, err := fsxpath.New(ctx, &fsxpath.Config{
//	    FileSystemID: "fs-0123456789abcdef0",
//	    Username:     `CORP\alice`,
//	    Password:     "secret",
//	    Region:       "us-east-1",
//	})
func New(ctx context.Context, config *Config) (*Client, error) {
	cfg, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newClient(ctx, cfg, fsx.NewFromConfig(awsCfg), &RealConnectionFactory{}, objects)
}

// NewWithFactory builds a client on injected collaborators. Tests pass a
// StaticDescriber and a MockConnectionFactory. The client has no S3 API;
// object paths are built with NewObjectPath.
func NewWithFactory(ctx context.Context, config *Config, describer FileSystemDescriber, factory ConnectionFactory) (*Client, error) {
	cfg, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg, describer, factory, nil)
}

func prepareConfig(config *Config) (*Config, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	cfg := *config
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newClient(ctx context.Context, cfg *Config, describer FileSystemDescriber, factory ConnectionFactory, objects ObjectAPI) (*Client, error) {
	desc, err := describeFileSystem(ctx, describer, cfg.FileSystemID)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Debug("described file system",
		zap.String("file_system_id", desc.ID),
		zap.String("dns_name", desc.DNSName),
		zap.String("type", string(desc.Type)))

	return &Client{
		config:  cfg,
		fs:      desc,
		factory: factory,
		objects: objects,
		logger:  cfg.Logger,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg *Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// FileSystem returns the file system description fetched by New.
func (c *Client) FileSystem() FileSystemDescriptor {
	d := c.fs
	d.SubnetIDs = append([]string(nil), c.fs.SubnetIDs...)
	return d
}

// Server is the DNS name of the file system, the server segment of every
// path the client builds.
func (c *Client) Server() string {
	return c.fs.DNSName
}

// Logger returns the logger from the configuration.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// Path builds a path on this file system bound to the client. Elements
// follow the server, so the first one is normally the share.
//
//	client.Path("share", "reports", "q1.csv")
//	// \\amznfsxabcd1234.corp.example.com\share\reports\q1.csv
func (c *Client) Path(elem ...string) *Path {
	p := NewPath(append([]string{c.Server()}, elem...)...)
	p.client = c
	return p
}

// Root is the configured share as a path.
func (c *Client) Root() *Path {
	return c.Path(c.config.Share)
}

// Bind parses s and binds it to the client. The server must be the
// file system's DNS name.
func (c *Client) Bind(s string) (*Path, error) {
	p, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(p.server, c.Server()) {
		return nil, wrapPathError("bind", s, ErrServerMismatch)
	}
	p.client = c
	return p, nil
}

// ObjectPath parses an s3://bucket/key URI into a path served by the
// client's S3 API.
func (c *Client) ObjectPath(uri string) (ObjectPath, error) {
	bucket, key, err := ParseObjectURI(uri)
	if err != nil {
		return ObjectPath{}, err
	}
	if c.objects == nil {
		return ObjectPath{}, fmt.Errorf("%w: client has no S3 API", ErrInvalidConfig)
	}
	return NewObjectPath(c.objects, bucket, key), nil
}

// dialAddr is where the SMB session is opened.
func (c *Client) dialAddr() string {
	host := c.config.Endpoint
	if host == "" {
		host = c.fs.DNSName
	}
	return net.JoinHostPort(host, strconv.Itoa(c.config.Port))
}

// resolve maps a path to its mounted share and the name inside it.
func (c *Client) resolve(p *Path) (SMBShare, string, error) {
	if p.relative {
		return nil, "", ErrInvalidPath
	}
	if !strings.EqualFold(p.server, c.Server()) {
		return nil, "", ErrServerMismatch
	}
	if c.session == nil {
		return nil, "", ErrNotConnected
	}
	if p.Share() == "" {
		return nil, "", ErrInvalidPath
	}

	share, err := c.share(p.Share())
	if err != nil {
		return nil, "", err
	}
	return share, p.toSMBPath(), nil
}
