package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMP4Box(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeAPI()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = Default().Paths.StateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QueueDB) == "" {
		c.Paths.QueueDB = filepath.Join(c.Paths.StateDir, defaultQueueDBName)
	}
	if c.Paths.QueueDB, err = expandPath(c.Paths.QueueDB); err != nil {
		return fmt.Errorf("paths.queue_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeMP4Box() error {
	c.MP4Box.Binary = strings.TrimSpace(c.MP4Box.Binary)
	if c.MP4Box.Binary == "" {
		if value, ok := os.LookupEnv("MP4BOX_PATH"); ok {
			c.MP4Box.Binary = strings.TrimSpace(value)
		}
	}
	if c.MP4Box.Binary == "" {
		c.MP4Box.Binary = detectMP4Box()
	}
	if strings.ContainsRune(c.MP4Box.Binary, filepath.Separator) || strings.HasPrefix(c.MP4Box.Binary, "~") {
		expanded, err := expandPath(c.MP4Box.Binary)
		if err != nil {
			return fmt.Errorf("mp4box.binary: %w", err)
		}
		c.MP4Box.Binary = expanded
	}
	if c.MP4Box.KillTimeoutSeconds == 0 {
		c.MP4Box.KillTimeoutSeconds = defaultMP4BoxKillTimeout
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.StopTimeoutSeconds == 0 {
		c.Queue.StopTimeoutSeconds = defaultQueueStopTimeout
	}
	c.Queue.ClearCompletedSchedule = strings.TrimSpace(c.Queue.ClearCompletedSchedule)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("MP4FORGE_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
