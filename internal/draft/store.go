// Package draft persists the in-progress inspection state between visits.
// Two fixed keys hold JSON blobs: the store info and the full working
// checklist. Every blob carries a schema version stamp; a stamp mismatch
// or an unreadable envelope is treated as a cache miss and the stale file
// is discarded, so a shape change never restores incompatible state.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// SchemaVersion is bumped whenever the persisted shape changes.
const SchemaVersion = 1

// Fixed keys for the two working-state blobs.
const (
	KeyStoreInfo      = "store_info"
	KeyInspectionData = "inspection_data"
)

// Store is the key-value interface the inspection session persists through.
// Get reports found=false for both a missing key and a discarded stale blob.
type Store interface {
	Put(key string, value any) error
	Get(key string, out any) (found bool, err error)
	Delete(key string) error
}

// envelope wraps every persisted payload with its schema version.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	SavedAt       time.Time       `json:"saved_at"`
	Payload       json.RawMessage `json:"payload"`
}

// FileStore keeps one JSON file per key in a directory, guarded by a file
// lock so a second process cannot interleave partial writes.
type FileStore struct {
	dir      string
	fileLock *flock.Flock
	mu       sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create draft dir: %w", err)
	}
	return &FileStore{
		dir:      dir,
		fileLock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Put serializes value and overwrites the key's file atomically.
func (s *FileStore) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal draft payload: %w", err)
	}

	data, err := json.MarshalIndent(envelope{
		SchemaVersion: SchemaVersion,
		SavedAt:       time.Now().UTC(),
		Payload:       payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft envelope: %w", err)
	}

	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write draft temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename draft file: %w", err)
	}
	return nil
}

// Get reads the key's blob into out. A missing file, an empty file, an
// undecodable envelope or a schema version mismatch all report found=false;
// the latter two also remove the stale file.
func (s *FileStore) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireLock()
	if err != nil {
		return false, err
	}
	defer unlock()

	path := s.path(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read draft file: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = os.Remove(path)
		return false, nil
	}
	if env.SchemaVersion != SchemaVersion {
		_ = os.Remove(path)
		return false, nil
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal draft payload: %w", err)
	}
	return true, nil
}

// Delete removes the key's file. Deleting a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete draft file: %w", err)
	}
	return nil
}

// Close removes the lock file.
func (s *FileStore) Close() error {
	_ = os.Remove(filepath.Join(s.dir, ".lock"))
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) acquireLock() (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire draft lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire draft lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}
