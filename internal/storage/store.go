package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"staffdir-scraper/internal/scraper"
)

// ErrPersistence marks a write that could not be committed. Per-entity
// fatal; the extracted data is not retried against a different key.
var ErrPersistence = errors.New("artifact write failed")

// Store maps entity keys to JSON artifacts on disk. Writes go through a temp
// file and a rename, so a reader never observes a partial artifact. The
// orchestrator guarantees at most one writer per key within a run.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Mark(err, ErrPersistence)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

func (s *Store) Write(key string, record *scraper.EntityRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "marshal %s", key), ErrPersistence)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return errors.Mark(err, ErrPersistence)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Mark(errors.Wrapf(err, "write %s", key), ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Mark(errors.Wrapf(err, "close %s", key), ErrPersistence)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Mark(errors.Wrapf(err, "commit %s", key), ErrPersistence)
	}
	return nil
}

// Read returns nil without error when no artifact exists for key.
func (s *Store) Read(key string) (*scraper.EntityRecord, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Mark(err, ErrPersistence)
	}

	var record scraper.EntityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s", key), ErrPersistence)
	}
	return &record, nil
}
