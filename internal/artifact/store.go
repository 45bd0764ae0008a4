package artifact

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrArtifactMissing is returned when a stored handle no longer
// resolves to a file.
var ErrArtifactMissing = errors.New("artifact_missing")

// Store persists rendered artifacts and resolves handles back to
// bytes.
type Store interface {
	Put(name string, data []byte) (string, error)
	Read(ref string) ([]byte, error)
}

// FileStore keeps artifacts on the local filesystem. The returned
// handle is the file name within the store directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func (s *FileStore) Read(ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactMissing
		}
		return nil, err
	}
	return data, nil
}
