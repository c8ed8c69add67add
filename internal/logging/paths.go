package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory.
// It follows XDG Base Directory specification:
//   - $XDG_STATE_HOME/docrag/logs (if XDG_STATE_HOME is set)
//   - ~/.local/state/docrag/logs (default)
func DefaultLogDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docrag", "logs")
	}
	return filepath.Join(home, ".local", "state", "docrag", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docrag.log")
}

// FindLogFile locates the log file for viewing.
// An explicit path wins; otherwise the default path is used.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found, run a docrag command first.\nExpected at: %s", path)
}
