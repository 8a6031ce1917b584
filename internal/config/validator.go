package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

var validSearchTypes = []string{"CHUNKS", "GRAPH_COMPLETION", "SUMMARIES"}

// Validate checks the configuration for semantic errors. Schema-level
// validation of the sources block happens in ValidateSourcesSchema.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := ValidateSourcesSchema(c.Sources); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	return c.validateWatch()
}

func (c *Config) validateRemote() error {
	if c.Remote.Endpoint == "" {
		return fmt.Errorf("remote endpoint is required")
	}

	u, err := url.Parse(c.Remote.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid remote endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote endpoint must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("remote endpoint is missing a host")
	}

	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.Remote.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	return nil
}

func (c *Config) validateSources() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one content source is required")
	}

	seen := make(map[string]bool)
	for i, src := range c.Sources {
		if src.Pattern == "" {
			return fmt.Errorf("source %d: pattern is required", i)
		}
		if src.Collection == "" {
			return fmt.Errorf("source %d (%s): collection is required", i, src.Pattern)
		}

		for _, ext := range src.Extensions {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("source %d (%s): extension %q must start with a dot", i, src.Pattern, ext)
			}
		}

		key := src.Pattern + "\x00" + src.Collection
		if seen[key] {
			return fmt.Errorf("duplicate source: pattern %q already targets collection %q", src.Pattern, src.Collection)
		}
		seen[key] = true
	}

	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.Sync.BatchSize > 64 {
		return fmt.Errorf("batch_size %d exceeds the maximum of 64", c.Sync.BatchSize)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Sync.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive")
	}
	if c.Sync.PollTimeout < c.Sync.PollInterval {
		return fmt.Errorf("poll_timeout must be at least the poll_interval")
	}
	if c.Sync.VerifyTimeout <= 0 {
		return fmt.Errorf("verify_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search top_k must be positive")
	}
	for _, st := range validSearchTypes {
		if c.Search.Type == st {
			return nil
		}
	}
	return fmt.Errorf("invalid search type %q (valid: %s)", c.Search.Type, strings.Join(validSearchTypes, ", "))
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch debounce_ms cannot be negative")
	}
	if c.Watch.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Watch.Schedule); err != nil {
			return fmt.Errorf("invalid watch schedule: %w", err)
		}
	}
	return nil
}
