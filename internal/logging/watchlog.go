package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WatchLog appends keyword hit lines to the session watch log.
// Lines are flat text so the file stays greppable.
type WatchLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenWatchLog opens (or creates) the watch log at path.
func OpenWatchLog(path string) (*WatchLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &WatchLog{file: f}, nil
}

// Append writes one hit line.
func (w *WatchLog) Append(channel, sender, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	line := fmt.Sprintf("[%s] #%s %s: %s\n",
		time.Now().UTC().Format(time.RFC3339), channel, sender, content)
	_, err := w.file.WriteString(line)
	return err
}

// Close closes the underlying file.
func (w *WatchLog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
