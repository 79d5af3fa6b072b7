// Package config loads the YAML configuration of the dcstore command.
//
// Configuration is read from a single file given by --config or the
// DCSTORE_CONFIG environment variable. Values not present in the file keep
// their defaults. ${VAR} and ${VAR:-default} are expanded in paths and
// credentials so secrets can stay out of the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/resource"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "DCSTORE_CONFIG"

// Backend selects the blob store holding the catalog.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendMemory Backend = "memory"
	BackendS3     Backend = "s3"
	BackendMinIO  Backend = "minio"
)

// Config is the complete process configuration.
type Config struct {
	// Backend selects the blob store. Default: local.
	Backend Backend `yaml:"backend"`

	Local LocalConfig `yaml:"local"`
	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`

	// Cache configures the block cache in front of remote backends.
	Cache CacheConfig `yaml:"cache"`

	// Resources bounds memory, workers and IO during loads and saves.
	Resources resource.Config `yaml:"resources"`

	// Write configures how store files are written.
	Write WriteConfig `yaml:"write"`

	Log LogConfig `yaml:"log"`
}

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	// Root is the catalog directory. Default: ${HOME}/.cache/dcstore.
	Root string `yaml:"root"`
}

// S3Config configures the Amazon S3 backend.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// CommitTable is a DynamoDB table holding the CURRENT pointer. Empty
	// keeps CURRENT as an S3 object, which is only safe for one writer.
	CommitTable string `yaml:"commit_table"`

	PartSize    int64 `yaml:"part_size"`
	Concurrency int   `yaml:"concurrency"`
}

// MinIOConfig configures the MinIO backend.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// CacheConfig configures blobstore.CachingStore.
type CacheConfig struct {
	// Blocks is the number of cached blocks. 0 disables the cache.
	Blocks int `yaml:"blocks"`
	// BlockSize is the block size in bytes. Default: 64KiB.
	BlockSize int64 `yaml:"block_size"`
}

// WriteConfig configures store file writing.
type WriteConfig struct {
	// Compression is none, lz4 or zstd. Default: zstd.
	Compression string `yaml:"compression"`
	// Codec encodes the directory: cbor or json. Default: cbor.
	Codec string `yaml:"codec"`
	// StructuralVersion is the layout version written. Default: 8.
	StructuralVersion uint32 `yaml:"structural_version"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`
	// Format is text or json. Default: text.
	Format string `yaml:"format"`
}

// Default returns the configuration used before the file is applied.
func Default() *Config {
	return &Config{
		Backend: BackendLocal,
		Local:   LocalConfig{Root: "${HOME}/.cache/dcstore"},
		S3:      S3Config{PartSize: 8 * 1024 * 1024, Concurrency: 5},
		MinIO:   MinIOConfig{Secure: true},
		Resources: resource.Config{
			MaxWorkers: 4,
		},
		Write: WriteConfig{
			Compression:       "zstd",
			Codec:             "cbor",
			StructuralVersion: persistence.StructuralVersion,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load loads the file named by DCSTORE_CONFIG. Without it the defaults
// are returned.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Local.Root = expandVars(c.Local.Root)
	c.S3.Bucket = expandVars(c.S3.Bucket)
	c.S3.Prefix = expandVars(c.S3.Prefix)
	c.S3.Endpoint = expandVars(c.S3.Endpoint)
	c.MinIO.Endpoint = expandVars(c.MinIO.Endpoint)
	c.MinIO.AccessKey = expandVars(c.MinIO.AccessKey)
	c.MinIO.SecretKey = expandVars(c.MinIO.SecretKey)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendLocal:
		if c.Local.Root == "" {
			errs = append(errs, errors.New("local.root is required"))
		}
	case BackendMemory:
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required"))
		}
		if c.S3.PartSize != 0 && c.S3.PartSize < 5*1024*1024 {
			errs = append(errs, fmt.Errorf("s3.part_size must be at least 5MiB, got %d", c.S3.PartSize))
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("minio.endpoint is required"))
		}
		if c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("minio.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %q", c.Backend))
	}

	if c.Cache.Blocks < 0 || c.Cache.BlockSize < 0 {
		errs = append(errs, errors.New("cache.blocks and cache.block_size must not be negative"))
	}
	if c.Resources.MemoryLimitBytes < 0 || c.Resources.MaxWorkers < 0 || c.Resources.IOLimitBytesPerSec < 0 {
		errs = append(errs, errors.New("resources limits must not be negative"))
	}

	if _, err := persistence.ParseCompression(c.Write.Compression); err != nil {
		errs = append(errs, fmt.Errorf("write.compression: %w", err))
	}
	if _, ok := codec.ByName(c.Write.Codec); !ok {
		errs = append(errs, fmt.Errorf("write.codec: unknown codec %q", c.Write.Codec))
	}
	if v := c.Write.StructuralVersion; v < persistence.MinStructuralVersion || v > persistence.StructuralVersion {
		errs = append(errs, fmt.Errorf("write.structural_version must be in [%d, %d], got %d",
			persistence.MinStructuralVersion, persistence.StructuralVersion, v))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// WriteOptions converts Write into persistence options.
func (c *Config) WriteOptions() []persistence.WriteOption {
	comp, _ := persistence.ParseCompression(c.Write.Compression)
	opts := []persistence.WriteOption{
		persistence.WithCompression(comp),
		persistence.WithStructuralVersion(c.Write.StructuralVersion),
	}
	if cd, ok := codec.ByName(c.Write.Codec); ok {
		opts = append(opts, persistence.WithCodec(cd))
	}
	return opts
}

// Controller builds the resource controller for Resources.
func (c *Config) Controller() *resource.Controller {
	return resource.NewController(c.Resources)
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
