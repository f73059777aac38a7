package config

import (
	"errors"
	"fmt"
	"strings"
)

// SupportedFormats lists the output formats the extraction tool is driven with.
var SupportedFormats = []string{"mp4", "mp3"}

// IsSupportedFormat reports whether format names a supported output format.
func IsSupportedFormat(format string) bool {
	for _, candidate := range SupportedFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateYTDLP(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateYTDLP() error {
	if strings.TrimSpace(c.YTDLP.Binary) == "" {
		return errors.New("ytdlp.binary must be set")
	}
	if c.YTDLP.ProbeTimeoutSeconds <= 0 {
		return errors.New("ytdlp.probe_timeout_seconds must be positive")
	}
	if !IsSupportedFormat(c.YTDLP.DefaultFormat) {
		return fmt.Errorf("ytdlp.default_format %q is not one of %s", c.YTDLP.DefaultFormat, strings.Join(SupportedFormats, ", "))
	}
	if len(c.YTDLP.UpdateCommand) == 0 || strings.TrimSpace(c.YTDLP.UpdateCommand[0]) == "" {
		return errors.New("ytdlp.update_command must name an executable")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.terminate_grace_seconds":      c.Workflow.TerminateGraceSeconds,
		"workflow.heartbeat_interval_seconds":   c.Workflow.HeartbeatIntervalSeconds,
		"notifications.request_timeout_seconds": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.SettleDelayMS < 0 {
		return errors.New("workflow.settle_delay_ms must be >= 0")
	}
	if c.Workflow.MaxRecoveries < 0 {
		return errors.New("workflow.max_recoveries must be >= 0")
	}
	if c.Workflow.StaleThresholdSeconds < 0 {
		return errors.New("workflow.stale_threshold_seconds must be >= 0")
	}
	if c.Workflow.StaleThresholdSeconds > 0 && c.Workflow.StaleThresholdSeconds <= c.Workflow.HeartbeatIntervalSeconds {
		return errors.New("workflow.stale_threshold_seconds must be greater than workflow.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.SubmitRatePerSecond < 0 {
		return errors.New("api.submit_rate_per_second must be >= 0")
	}
	if c.API.SubmitRatePerSecond > 0 && c.API.SubmitBurst <= 0 {
		return errors.New("api.submit_burst must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
