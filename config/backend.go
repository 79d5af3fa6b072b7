package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hupe1980/dcstore/blobstore"
	"github.com/hupe1980/dcstore/blobstore/minio"
	"github.com/hupe1980/dcstore/blobstore/s3"
)

// OpenBlobStore builds the configured backend, wrapped in a block cache
// when Cache.Blocks is set.
func (c *Config) OpenBlobStore(ctx context.Context) (blobstore.BlobStore, error) {
	bs, err := c.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	if c.Cache.Blocks == 0 {
		return bs, nil
	}
	cached, err := blobstore.NewCachingStore(bs, c.Cache.Blocks, c.Cache.BlockSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func (c *Config) openBackend(ctx context.Context) (blobstore.BlobStore, error) {
	switch c.Backend {
	case BackendLocal:
		return blobstore.NewLocalStore(c.Local.Root), nil
	case BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case BackendMinIO:
		m := c.MinIO
		return minio.Dial(m.Endpoint, m.AccessKey, m.SecretKey, m.Secure, m.Bucket, m.Prefix)
	case BackendS3:
		return c.openS3(ctx)
	default:
		return nil, fmt.Errorf("config: invalid backend %q", c.Backend)
	}
}

func (c *Config) openS3(ctx context.Context) (blobstore.BlobStore, error) {
	upload := s3.DefaultUploadConfig()
	if c.S3.PartSize > 0 {
		upload.PartSize = c.S3.PartSize
	}
	if c.S3.Concurrency > 0 {
		upload.Concurrency = c.S3.Concurrency
	}

	store, err := s3.New(ctx, c.S3.Bucket,
		s3.WithPrefix(c.S3.Prefix),
		s3.WithRegion(c.S3.Region),
		s3.WithEndpoint(c.S3.Endpoint),
		s3.WithUploadConfig(upload),
	)
	if err != nil {
		return nil, err
	}
	if c.S3.CommitTable == "" {
		return store, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if c.S3.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(c.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}
	ddb := dynamodb.NewFromConfig(awsCfg)
	return s3.NewDDBCommitStore(store, ddb, c.S3.CommitTable, s3.BaseURI(store)), nil
}
