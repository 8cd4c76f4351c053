// Package artifact stores archived run outputs on the filesystem and
// tracks them in an index with a retention deadline. Each archive step
// produces one set: a directory of flat files under the artifact root.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Set is one archived group of files produced by a single archive step.
type Set struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Files     []string  `json:"files"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Index persists artifact sets. Implemented by the run store.
type Index interface {
	InsertArtifact(ctx context.Context, set Set) error
	ExpiredArtifacts(ctx context.Context, now time.Time) ([]Set, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// ErrFileNotInSet is returned by Open when the requested file is not part
// of the artifact set.
var ErrFileNotInSet = errors.New("artifact: file not in set")

// ErrSetNotFound is returned by index lookups for unknown set IDs.
var ErrSetNotFound = errors.New("artifact: set not found")

// Store archives files under a root directory and records each set in the
// index.
type Store struct {
	root   string
	index  Index
	logger *slog.Logger

	// Now is injectable for tests.
	Now func() time.Time
}

// NewStore creates the artifact root if needed and returns a Store.
func NewStore(root string, index Index, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("artifact: create root %s: %w", root, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:   root,
		index:  index,
		logger: logger,
		Now:    time.Now,
	}, nil
}

// Archive copies every workspace file matching pattern into a new artifact
// set and indexes it with expiry now+retention. File names are flattened to
// their base names; matches are sorted so the set contents are
// deterministic. Zero matches returns (nil, nil): nothing to archive is
// not an error.
func (s *Store) Archive(ctx context.Context, runID, name, workspace, pattern string, retention time.Duration) (*Set, error) {
	matches, err := filepath.Glob(filepath.Join(workspace, pattern))
	if err != nil {
		return nil, fmt.Errorf("artifact: bad pattern %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("artifact: stat %s: %w", m, err)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, nil
	}
	slices.Sort(files)

	id := "art_" + uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("artifact: create set directory: %w", err)
	}

	now := s.Now().UTC()
	set := &Set{
		ID:        id,
		RunID:     runID,
		Name:      name,
		CreatedAt: now,
		ExpiresAt: now.Add(retention),
	}

	seen := make(map[string]struct{}, len(files))
	for _, src := range files {
		base := filepath.Base(src)
		if _, dup := seen[base]; dup {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("artifact: duplicate file name %q in set", base)
		}
		seen[base] = struct{}{}

		n, err := copyFile(src, filepath.Join(dir, base))
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		set.Files = append(set.Files, base)
		set.Bytes += n
	}

	if err := s.index.InsertArtifact(ctx, *set); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return set, nil
}

// Open returns a reader for one file of a set. The name must be one of
// set.Files; anything else, including path traversal attempts, is
// rejected.
func (s *Store) Open(set *Set, name string) (*os.File, error) {
	if name != filepath.Base(name) || !slices.Contains(set.Files, name) {
		return nil, fmt.Errorf("%w: %q", ErrFileNotInSet, name)
	}
	f, err := os.Open(filepath.Join(s.root, set.ID, name))
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s/%s: %w", set.ID, name, err)
	}
	return f, nil
}

// Dir returns the directory holding a set's files.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// Sweep removes every artifact set whose expiry is at or before now, both
// files and index rows. It keeps going past individual failures and
// reports them joined.
func (s *Store) Sweep(ctx context.Context, now time.Time) (removed int, freed int64, err error) {
	sets, err := s.index.ExpiredArtifacts(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	var errs []error
	for _, set := range sets {
		if err := os.RemoveAll(s.Dir(set.ID)); err != nil {
			errs = append(errs, fmt.Errorf("artifact: remove %s: %w", set.ID, err))
			continue
		}
		if err := s.index.DeleteArtifact(ctx, set.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		freed += set.Bytes
		s.logger.Debug("artifact set expired", "id", set.ID, "name", set.Name, "bytes", set.Bytes)
	}
	return removed, freed, errors.Join(errs...)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("artifact: open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("artifact: create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("artifact: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("artifact: close %s: %w", dst, err)
	}
	return n, nil
}
