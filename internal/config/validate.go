package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field cron expressions and descriptors such as @daily.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a queue maintenance schedule expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMP4Box(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMP4Box() error {
	if c.MP4Box.KillTimeoutSeconds < 0 {
		return errors.New("mp4box.kill_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.StopTimeoutSeconds < 0 {
		return errors.New("queue.stop_timeout_seconds must be positive")
	}
	if c.Queue.ClearCompletedSchedule != "" {
		if _, err := ParseSchedule(c.Queue.ClearCompletedSchedule); err != nil {
			return fmt.Errorf("queue.clear_completed_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
