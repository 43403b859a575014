package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-workspace directory holding session state
	DataDirName = ".remap"
	// ConfigFileName is the config file inside the data directory
	ConfigFileName = "config.json"
	// SessionDBName is the SQLite session database inside the data directory
	SessionDBName = "session.db"
	// LogsSubdir holds log files inside the data directory
	LogsSubdir = "logs"
	// LogFileName is the CLI log file inside the logs directory
	LogFileName = "remap.log"
)

// GetDataDir returns <root>/.remap
func GetDataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// EnsureDataDir creates <root>/.remap if needed and returns it
func EnsureDataDir(root string) (string, error) {
	dir := GetDataDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigPath returns <root>/.remap/config.json
func GetConfigPath(root string) string {
	return filepath.Join(GetDataDir(root), ConfigFileName)
}

// GetSessionDBPath returns <root>/.remap/session.db
func GetSessionDBPath(root string) string {
	return filepath.Join(GetDataDir(root), SessionDBName)
}

// GetLogPath returns <root>/.remap/logs/remap.log
func GetLogPath(root string) string {
	return filepath.Join(GetDataDir(root), LogsSubdir, LogFileName)
}

// EnsureLogsDir creates <root>/.remap/logs if needed and returns it
func EnsureLogsDir(root string) (string, error) {
	dir := filepath.Join(GetDataDir(root), LogsSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// SessionExists reports whether a session database is present under root
func SessionExists(root string) bool {
	_, err := os.Stat(GetSessionDBPath(root))
	return err == nil
}

// Resolve returns p unchanged when absolute, otherwise joined onto root
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return JoinRootPath(root, p)
}

// CanonicalizePath converts an absolute path to a root-relative path with forward slashes.
// Symlinks are resolved when the path exists.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// JoinRootPath joins a root with a slash-separated relative path
func JoinRootPath(root string, canonicalPath string) string {
	normalized := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalized, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
