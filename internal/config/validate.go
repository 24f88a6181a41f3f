package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks values that cannot be fixed by a default. Credentials are
// not required here: the server runs without the media host and the seed
// command checks them itself through RequireMedia.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required (DATABASE_URL)"))
	}
	if c.Seeding.Pace < 0 {
		errs = append(errs, errors.New("seeding.pace must not be negative"))
	}
	if c.Seeding.FetchTimeout <= 0 {
		errs = append(errs, errors.New("seeding.fetch_timeout must be positive"))
	}
	if c.Seeding.MaxDimension <= 0 {
		errs = append(errs, errors.New("seeding.max_dimension must be positive"))
	}
	if c.Seeding.JPEGQuality < 1 || c.Seeding.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("seeding.jpeg_quality must be within 1..100, got %d", c.Seeding.JPEGQuality))
	}
	if strings.TrimSpace(c.Media.Root) == "" {
		errs = append(errs, errors.New("media.root is required"))
	}

	return errors.Join(errs...)
}

// RequireMedia reports missing media host credentials.
func (c *Config) RequireMedia() error {
	var missing []string
	if c.Media.CloudName == "" {
		missing = append(missing, "media.cloud_name")
	}
	if c.Media.APIKey == "" {
		missing = append(missing, "media.api_key")
	}
	if c.Media.APISecret == "" {
		missing = append(missing, "media.api_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing media host settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
