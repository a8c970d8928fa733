package archive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mywallet/mywallet/internal/pkg/env"
)

// Config holds the S3 settings for webhook payload archival.
type Config struct {
	Enabled         bool   `env:"S3_ARCHIVE_ENABLED" envDefault:"false"`
	AccessKeyID     string `env:"S3_ARCHIVE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_ARCHIVE_SECRET_ACCESS_KEY"`
	Region          string `env:"S3_ARCHIVE_REGION" envDefault:"us-east-1"`
	BucketName      string `env:"S3_ARCHIVE_BUCKET"`
	EndpointURL     string `env:"S3_ARCHIVE_ENDPOINT_URL"` // S3-compatible services
	Prefix          string `env:"S3_ARCHIVE_PREFIX" envDefault:"webhooks"`
}

// LoadConfig reads the archive configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse archive config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields when archival is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.AccessKeyID == "" {
		return errors.New("S3_ARCHIVE_ACCESS_KEY_ID is required when the archive is enabled")
	}
	if c.SecretAccessKey == "" {
		return errors.New("S3_ARCHIVE_SECRET_ACCESS_KEY is required when the archive is enabled")
	}
	if c.BucketName == "" {
		return errors.New("S3_ARCHIVE_BUCKET is required when the archive is enabled")
	}
	return nil
}

// ObjectKey returns the key a payload is stored under:
// <prefix>/YYYY/MM/DD/<provider>-<event id>.json
func (c *Config) ObjectKey(provider, eventID string, receivedAt time.Time) string {
	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		prefix = "webhooks"
	}
	at := receivedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%s.json",
		prefix, at.Year(), int(at.Month()), at.Day(), sanitize(provider), sanitize(eventID))
}

func sanitize(part string) string {
	part = strings.TrimSpace(part)
	if part == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, part)
}
