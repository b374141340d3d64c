package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Converter ConverterConfig `yaml:"converter"`
	Databases DatabasesConfig `yaml:"databases"`
	Reader    ReaderConfig    `yaml:"reader"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ConverterConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DatabasesConfig struct {
	// Paths lists signal database files loaded before any passed on the
	// command line. Later files take precedence for duplicate frame ids.
	Paths []string `yaml:"paths"`
}

type ReaderConfig struct {
	// BoundaryWindow is the scan window, in bytes, used to locate the
	// transition from the text header to the binary data region.
	BoundaryWindow int `yaml:"boundary_window"`
	// BoundaryThreshold is the fraction of null bytes within a window
	// that marks the start of binary data.
	BoundaryThreshold float64 `yaml:"boundary_threshold"`
}

type WriterConfig struct {
	// NumericChannels selects which channels also get numeric sample
	// objects: "all" (default) or "unmapped".
	NumericChannels string `yaml:"numeric_channels"`
	// ChannelIndex is the bus number stamped on emitted frames.
	ChannelIndex uint16 `yaml:"channel_index"`
	// ApplicationID identifies the producing tool in the trace header.
	ApplicationID string `yaml:"application_id"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string                 `yaml:"level"`
	Format string                 `yaml:"format"`
	Output string                 `yaml:"output"`
	MaxAge int                    `yaml:"max_age"`
	Fields map[string]interface{} `yaml:"fields"`
}

const (
	NumericUnmapped = "unmapped"
	NumericAll      = "all"
)

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Converter: ConverterConfig{
			Name:    "sif2blf",
			Version: "dev",
		},
		Reader: ReaderConfig{
			BoundaryWindow:    1024,
			BoundaryThreshold: 0.5,
		},
		Writer: WriterConfig{
			NumericChannels: NumericAll,
			ChannelIndex:    1,
			ApplicationID:   "sif2blf",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Converter.Name == "" {
		return fmt.Errorf("converter.name is required")
	}

	if cfg.Converter.Version == "" {
		return fmt.Errorf("converter.version is required")
	}

	if cfg.Reader.BoundaryWindow <= 0 {
		return fmt.Errorf("reader.boundary_window must be greater than 0")
	}
	if cfg.Reader.BoundaryThreshold <= 0 || cfg.Reader.BoundaryThreshold > 1 {
		return fmt.Errorf("reader.boundary_threshold must be in (0, 1]")
	}

	switch cfg.Writer.NumericChannels {
	case NumericUnmapped, NumericAll:
	default:
		return fmt.Errorf("writer.numeric_channels must be %q or %q", NumericUnmapped, NumericAll)
	}
	if cfg.Writer.ChannelIndex == 0 {
		return fmt.Errorf("writer.channel_index must be greater than 0")
	}
	if cfg.Writer.ApplicationID == "" {
		return fmt.Errorf("writer.application_id is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
