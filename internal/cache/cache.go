// Package cache provides the keyed directory cache shared across runs.
// Entries are plain directory snapshots under a cache root; keys are
// qualified with the platform so entries never cross OS/arch boundaries.
package cache

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

var validKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store is a directory-snapshot cache.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the cache root if needed and returns a Store.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create root %s: %w", root, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}, nil
}

// Key returns the platform-qualified form of a configured cache key,
// e.g. "linux-amd64-feed-cache-v1".
func Key(key string) string {
	return runtime.GOOS + "-" + runtime.GOARCH + "-" + key
}

// Restore copies the entry for key into dst, creating dst if needed.
// A missing entry is not an error: Restore returns (false, nil) and the
// caller decides what a miss means.
func (s *Store) Restore(key, dst string) (bool, error) {
	if !validKeyPattern.MatchString(key) {
		return false, fmt.Errorf("cache: invalid key %q", key)
	}

	entry := filepath.Join(s.root, Key(key))
	if _, err := os.Stat(entry); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache: stat entry %s: %w", Key(key), err)
	}

	if err := copyTree(entry, dst); err != nil {
		return false, err
	}
	s.logger.Debug("cache restored", "key", Key(key), "dst", dst)
	return true, nil
}

// Save replaces the entry for key with a snapshot of src. The snapshot is
// staged in a temporary directory and renamed into place, so a concurrent
// Restore sees either the old entry or the new one.
func (s *Store) Save(key, src string) error {
	if !validKeyPattern.MatchString(key) {
		return fmt.Errorf("cache: invalid key %q", key)
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("cache: source %s does not exist", src)
		}
		return fmt.Errorf("cache: stat source %s: %w", src, err)
	}

	staged, err := os.MkdirTemp(s.root, ".staging-*")
	if err != nil {
		return fmt.Errorf("cache: create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staged) }()

	if err := copyTree(src, staged); err != nil {
		return err
	}

	entry := filepath.Join(s.root, Key(key))
	if err := os.RemoveAll(entry); err != nil {
		return fmt.Errorf("cache: remove old entry %s: %w", Key(key), err)
	}
	if err := os.Rename(staged, entry); err != nil {
		return fmt.Errorf("cache: install entry %s: %w", Key(key), err)
	}
	s.logger.Debug("cache saved", "key", Key(key), "src", src)
	return nil
}

// copyTree copies a directory tree. Symlinks are not preserved.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("cache: walk %s: %w", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("cache: rel %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o700); err != nil {
				return fmt.Errorf("cache: create %s: %w", target, err)
			}
			return nil
		case !d.Type().IsRegular():
			return nil
		default:
			return copyFile(path, target)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cache: open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("cache: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("cache: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("cache: close %s: %w", dst, err)
	}
	return nil
}
