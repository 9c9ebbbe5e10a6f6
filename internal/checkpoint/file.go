package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the snapshot in a single file inside Dir.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint dir is required")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, snapshotName+".txt")
}

// Save writes the whole snapshot to a temp file and renames it into place,
// so readers see either the previous snapshot or the new one.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+snapshotName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encodeSnapshot(tmp, snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot file. Without one, it falls back to the older
// one-file-per-list layout; with neither, the snapshot is empty.
func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	f, err := os.Open(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return s.loadLegacy()
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	snap, err := decodeSnapshot(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s.Path(), err)
	}
	return snap, nil
}

func (s *FileStore) loadLegacy() (Snapshot, error) {
	var snap Snapshot
	for _, list := range snapshotLists(&snap) {
		entries, err := s.readLegacy(list.name + ".txt")
		if err != nil {
			return Snapshot{}, err
		}
		*list.entries = entries
	}
	return snap, nil
}

func (s *FileStore) readLegacy(name string) ([]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	entries, err := readList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return entries, nil
}
