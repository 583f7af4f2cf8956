package fsxpath

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/fsx"
	"github.com/aws/aws-sdk-go-v2/service/fsx/types"
)

// FileSystemDescriber looks up FSx file systems. *fsx.Client satisfies it.
type FileSystemDescriber interface {
	DescribeFileSystems(ctx context.Context, params *fsx.DescribeFileSystemsInput, optFns ...func(*fsx.Options)) (*fsx.DescribeFileSystemsOutput, error)
}

// FileSystemDescriptor is the subset of the FSx DescribeFileSystems
// response the client needs.
type FileSystemDescriptor struct {
	ID              string
	ARN             string
	DNSName         string
	OwnerID         string
	Type            types.FileSystemType
	StorageCapacity int32 // GiB
	StorageType     types.StorageType
	VpcID           string
	SubnetIDs       []string

	// Windows configuration
	ActiveDirectoryID     string
	PreferredSubnetID     string
	PreferredFileServerIP string
}

// describeFileSystem fetches the file system with the given id. Exactly one
// match is required.
func describeFileSystem(ctx context.Context, api FileSystemDescriber, id string) (FileSystemDescriptor, error) {
	out, err := api.DescribeFileSystems(ctx, &fsx.DescribeFileSystemsInput{
		FileSystemIds: []string{id},
		MaxResults:    aws.Int32(2),
	})
	if err != nil {
		return FileSystemDescriptor{}, fmt.Errorf("%w: %s: %w", ErrDescribeFileSystem, id, err)
	}
	if n := len(out.FileSystems); n != 1 {
		return FileSystemDescriptor{}, fmt.Errorf("%w: %s: expected one file system, got %d", ErrDescribeFileSystem, id, n)
	}

	fs := out.FileSystems[0]
	d := FileSystemDescriptor{
		ID:              aws.ToString(fs.FileSystemId),
		ARN:             aws.ToString(fs.ResourceARN),
		DNSName:         aws.ToString(fs.DNSName),
		OwnerID:         aws.ToString(fs.OwnerId),
		Type:            fs.FileSystemType,
		StorageCapacity: aws.ToInt32(fs.StorageCapacity),
		StorageType:     fs.StorageType,
		VpcID:           aws.ToString(fs.VpcId),
		SubnetIDs:       slices.Clone(fs.SubnetIds),
	}
	if wc := fs.WindowsConfiguration; wc != nil {
		d.ActiveDirectoryID = aws.ToString(wc.ActiveDirectoryId)
		d.PreferredSubnetID = aws.ToString(wc.PreferredSubnetId)
		d.PreferredFileServerIP = aws.ToString(wc.PreferredFileServerIp)
	}
	if d.DNSName == "" {
		return FileSystemDescriptor{}, fmt.Errorf("%w: %s: no DNS name", ErrDescribeFileSystem, id)
	}
	return d, nil
}

// StaticDescriber answers DescribeFileSystems from a fixed list. It stands
// in for the FSx API in tests and offline tools.
type StaticDescriber struct {
	FileSystems []types.FileSystem
	Err         error
	Calls       int
}

// DescribeFileSystems returns the configured file systems whose id is requested.
func (d *StaticDescriber) DescribeFileSystems(ctx context.Context, params *fsx.DescribeFileSystemsInput, optFns ...func(*fsx.Options)) (*fsx.DescribeFileSystemsOutput, error) {
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	out := &fsx.DescribeFileSystemsOutput{}
	for _, fs := range d.FileSystems {
		if len(params.FileSystemIds) == 0 || slices.Contains(params.FileSystemIds, aws.ToString(fs.FileSystemId)) {
			out.FileSystems = append(out.FileSystems, fs)
		}
	}
	if params.MaxResults != nil && len(out.FileSystems) > int(*params.MaxResults) {
		out.FileSystems = out.FileSystems[:*params.MaxResults]
	}
	return out, nil
}

// WindowsFileSystem builds a minimal FSx for Windows description.
func WindowsFileSystem(id, dnsName string) types.FileSystem {
	return types.FileSystem{
		FileSystemId:    aws.String(id),
		DNSName:         aws.String(dnsName),
		FileSystemType:  types.FileSystemTypeWindows,
		StorageType:     types.StorageTypeSsd,
		StorageCapacity: aws.Int32(32),
		WindowsConfiguration: &types.WindowsFileSystemConfiguration{
			ActiveDirectoryId: aws.String("d-0000000000"),
		},
	}
}
