package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/filex"
)

// FileProfileStore keeps the plaintext profile as a JSON file. Writes go
// through a temp file and a rename so a crash never leaves half a profile.
type FileProfileStore struct {
	path string

	mu        sync.Mutex
	writtenAt time.Time
}

func NewFileProfileStore(path string) *FileProfileStore {
	return &FileProfileStore{path: path}
}

func (s *FileProfileStore) Load(_ context.Context) (*models.Profile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no profile at %s", common.ErrNotFound, s.path)
	}
	if err != nil {
		return nil, err
	}

	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid profile: %v", common.ErrValidation, s.path, err)
	}
	return &p, nil
}

func (s *FileProfileStore) Replace(_ context.Context, p *models.Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	mod, err := filex.WriteFileAtomic(s.path, data, 0o600)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.writtenAt = mod
	s.mu.Unlock()
	return nil
}

// WrittenAt is the modification time of the store's own last write, so
// that a file watcher can tell it apart from a user edit.
func (s *FileProfileStore) WrittenAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writtenAt
}

func (s *FileProfileStore) Path() string {
	return s.path
}
