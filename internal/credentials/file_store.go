package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/sessionkeeper/internal/filex"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// FileStore keeps credential documents as owner-only JSON files.
type FileStore struct {
	logger logging.Logger

	// beforeRename is a test seam for simulating a kill mid-save.
	beforeRename func(tmpPath string) error
}

func NewFileStore(logger logging.Logger) *FileStore {
	return &FileStore{logger: logging.Or(logger)}
}

func (s *FileStore) Load(_ context.Context, path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return unavailable(path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return unavailable(path, fmt.Errorf("malformed json: %w", err))
	}
	return nil
}

func (s *FileStore) Save(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := filex.EnsureDir(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	return filex.WriteAtomic(path, data, filex.WriteOptions{
		Perm: 0o600,
		OnChmodError: func(err error) {
			s.logger.Warn(ctx, "could not restrict credential file permissions", "path", path, "error", err)
		},
		BeforeRename: s.beforeRename,
	})
}

// IsNotExist reports whether err comes from a credential document that was
// simply absent, as opposed to one that failed to parse.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, errObjectMissing)
}
