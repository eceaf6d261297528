package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.deepsearch.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".deepsearch")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the control API socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DeviceDBPath returns the whatsmeow device credential store path.
func DeviceDBPath(name string) string {
	return filepath.Join(Dir(name), "device.db")
}

// ArchiveDBPath returns the message archive database path.
func ArchiveDBPath(name string) string {
	return filepath.Join(Dir(name), "archive.db")
}

// StatsPath returns the durable search statistics file path.
func StatsPath(name string) string {
	return filepath.Join(Dir(name), "search_stats.json")
}

// ExportDir returns the directory search exports are written to.
func ExportDir(name string) string {
	return filepath.Join(Dir(name), "exports")
}

// QRPath returns the path the pairing QR code image is rendered to.
func QRPath(name string) string {
	return filepath.Join(Dir(name), "qr.png")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "deepsearchd.log")
}

// WatchLogPath returns the keyword watch hit log path.
func WatchLogPath(name string) string {
	return filepath.Join(LogDir(name), "watch.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
		ExportDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
