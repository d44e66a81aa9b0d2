// Package session maps account names to their on-disk layout under
// ~/.pigeon and resolves which account a command acts on.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.pigeon.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pigeon")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Dir returns the data directory for one account.
func Dir(account string) string {
	return filepath.Join(BaseDir(), "accounts", account)
}

// DBPath returns the local store path for an account.
func DBPath(account string) string {
	return filepath.Join(Dir(account), "pigeon.db")
}

// LogPath returns the daemon log file path for an account.
func LogPath(account string) string {
	return filepath.Join(Dir(account), "logs", "pigeond.log")
}

// EnsureDir creates the account directory tree.
func EnsureDir(account string) error {
	return os.MkdirAll(filepath.Join(Dir(account), "logs"), 0700)
}
