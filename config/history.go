package config

import (
	"fmt"

	"github.com/nutetra/doser/core/history"
)

// HistoryConfig defines settings for history snapshot storage and rotation.
type HistoryConfig struct {
	// Backend selects the store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *HistoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "dosing_history.log"
	}
}

// Validate checks mandatory fields.
func (c HistoryConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown history backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("history.path is required")
	}
	return nil
}

// NewStore builds the configured history store.
func (c HistoryConfig) NewStore() (history.Store, error) {
	switch c.Backend {
	case "sqlite":
		return history.NewSQLiteStore(c.Path)
	default:
		return history.NewJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	}
}
