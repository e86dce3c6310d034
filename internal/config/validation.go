package config

import (
	"fmt"
	"time"
)

// Validate checks cross-field consistency after defaults are applied.
func (c *Config) Validate() error {
	if c.Builder.Command == "" {
		return fmt.Errorf("builder.command must not be empty")
	}
	if c.Builder.SourceDir == c.Builder.BuildDir {
		return fmt.Errorf("builder.source_dir and builder.build_dir must differ (both %q)", c.Builder.SourceDir)
	}
	if c.Builder.Timeout != "" {
		if _, err := time.ParseDuration(c.Builder.Timeout); err != nil {
			return fmt.Errorf("builder.timeout: %w", err)
		}
	}
	if c.Publish.Branch == c.Publish.StableBranch || c.Publish.Branch == c.Publish.DevBranch {
		return fmt.Errorf("publish.branch %q must differ from source branches", c.Publish.Branch)
	}
	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port %d out of range", c.Preview.Port)
	}
	if c.Daemon.BuildInterval != "" {
		d, err := time.ParseDuration(c.Daemon.BuildInterval)
		if err != nil {
			return fmt.Errorf("daemon.build_interval: %w", err)
		}
		if d < time.Minute {
			return fmt.Errorf("daemon.build_interval %s below minimum of 1m", d)
		}
	}
	if ch := c.Daemon.PublishChannel; ch != "" {
		if ch != string(ChannelStable) && ch != string(ChannelDev) {
			return fmt.Errorf("daemon.publish_channel %q must be %q or %q", ch, ChannelStable, ChannelDev)
		}
	}
	if c.Daemon.Events.Enabled && c.Daemon.Events.NATSURL == "" {
		return fmt.Errorf("daemon.events.nats_url required when events are enabled")
	}
	return nil
}

// BuilderTimeout returns the parsed builder timeout, or zero when unset.
func (c *Config) BuilderTimeout() time.Duration {
	if c.Builder.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Builder.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// DaemonBuildInterval returns the parsed daemon build interval, or zero
// when the configured value does not parse.
func (c *Config) DaemonBuildInterval() time.Duration {
	d, err := time.ParseDuration(c.Daemon.BuildInterval)
	if err != nil {
		return 0
	}
	return d
}
