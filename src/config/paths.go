package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths holds the filesystem locations for conversation state.
type StoragePaths struct {
	DatabasePath string
	LogDir       string
}

// GetDefaultStoragePaths returns the XDG state locations for the sqlite
// database and session logs.
func GetDefaultStoragePaths() StoragePaths {
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, "skald", "conversations.db"),
		LogDir:       filepath.Join(xdg.StateHome, "skald", "logs"),
	}
}

// GetDefaultAuditLogPath returns the XDG state location for the remote tool
// audit trail.
func GetDefaultAuditLogPath() string {
	return filepath.Join(xdg.StateHome, "skald", "audit.log")
}

// GetDefaultCachePath returns the XDG cache directory for model listings.
func GetDefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "skald")
}
