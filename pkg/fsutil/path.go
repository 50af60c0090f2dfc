// Package fsutil holds the path and file helpers shared by the layoutml
// commands: joining paths with an optional extension, existence checks with a
// caller-selected error mode, directory creation, directory listing by
// extension, and extension-dispatched load/save.
package fsutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrPathNotFound is returned in Raise mode when a path does not exist.
	ErrPathNotFound = errors.New("no such file or directory")
	// ErrInvalidExtension is returned when an extension-sensitive operation
	// was given a name without one.
	ErrInvalidExtension = errors.New("file extension required")
	// ErrUnsupportedFormat is returned when no codec is registered for an
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported serialization format")
)

// ErrorMode selects how a missing path is reported.
type ErrorMode int

const (
	// Ignore reports nothing.
	Ignore ErrorMode = iota
	// Warn logs a warning and carries on.
	Warn
	// Raise returns an error wrapping ErrPathNotFound.
	Raise
)

func (m ErrorMode) String() string {
	switch m {
	case Ignore:
		return "ignore"
	case Warn:
		return "warn"
	case Raise:
		return "raise"
	}
	return fmt.Sprintf("ErrorMode(%d)", int(m))
}

// ParseErrorMode converts "ignore", "warn" or "raise" to an ErrorMode.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return Ignore, nil
	case "warn":
		return Warn, nil
	case "raise":
		return Raise, nil
	}
	return Ignore, fmt.Errorf("the error mode must be either 'ignore', 'warn' or 'raise', got: %q", s)
}

// report applies the mode to a missing path. Only Raise produces an error.
func (m ErrorMode) report(path string) error {
	switch m {
	case Warn:
		slog.Warn("Path does not exist", "path", path)
	case Raise:
		return fmt.Errorf("%w: '%s'", ErrPathNotFound, path)
	}
	return nil
}

// JoinPath joins the parts and, when ext is given and the joined path does
// not already end with it, replaces the path's extension with ext. The dot
// on ext is optional.
func JoinPath(ext string, parts ...string) string {
	joined := filepath.Join(parts...)
	if ext == "" {
		return joined
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	current := filepath.Ext(joined)
	if current == ext {
		return joined
	}
	return strings.TrimSuffix(joined, current) + ext
}

// CheckPath joins the parts (see JoinPath) and reports whether the result
// exists. A missing path is reported according to mode.
func CheckPath(mode ErrorMode, ext string, parts ...string) (string, bool, error) {
	path := JoinPath(ext, parts...)
	if _, err := os.Stat(path); err == nil {
		return path, true, nil
	}
	return path, false, mode.report(path)
}

// MakePath joins the parts and creates the directory if it does not exist.
func MakePath(parts ...string) (string, error) {
	path, exist, _ := CheckPath(Ignore, "", parts...)
	if exist {
		return path, nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	slog.Debug("Path has been made", "path", path)
	return path, nil
}

// ListPath returns the entries of the joined directory whose extension,
// without the dot, is in exts. The match is case sensitive. Entries are
// returned as names, or as joined paths when fullPath is set.
func ListPath(mode ErrorMode, exts []string, fullPath bool, parts ...string) (string, []string, error) {
	dir, exist, err := CheckPath(mode, "", parts...)
	if err != nil {
		return dir, nil, err
	}
	if !exist {
		return dir, nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return dir, nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		ext := strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
		if !slices.Contains(exts, ext) {
			continue
		}
		if fullPath {
			files = append(files, filepath.Join(dir, entry.Name()))
		} else {
			files = append(files, entry.Name())
		}
	}
	return dir, files, nil
}

// WalkPath is ListPath over the whole tree rooted at the joined directory.
// Matches are returned as full paths in lexical order.
func WalkPath(mode ErrorMode, exts []string, parts ...string) ([]string, error) {
	root, exist, err := CheckPath(mode, "", parts...)
	if err != nil || !exist {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(exts, strings.TrimPrefix(filepath.Ext(path), ".")) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// BaseName returns the last element of path with its extension removed.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SplitPath splits path into a left and right part at the n-th separator,
// counted from the left, or from the right when fromRight is set.
func SplitPath(path string, n int, fromRight bool) (string, string, error) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if n < 1 || n >= len(parts) {
		return "", "", fmt.Errorf("split must be within range of 1 and directory depth %d, got: %d", len(parts)-1, n)
	}
	at := n
	if fromRight {
		at = len(parts) - n
	}
	left := filepath.FromSlash(strings.Join(parts[:at], "/"))
	right := filepath.FromSlash(strings.Join(parts[at:], "/"))
	return left, right, nil
}
