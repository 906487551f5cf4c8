package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// FileStore keeps harvests as a JSON array on disk and codes in a sidecar
// file. Every mutation rewrites the file through a temp file and a rename,
// so readers never observe a half-written document.
type FileStore struct {
	mu        sync.Mutex
	path      string
	codesPath string
}

// NewFileStore opens (or lazily creates) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file store: mkdir %s: %w", dir, err)
		}
	}
	ext := filepath.Ext(path)
	return &FileStore{
		path:      path,
		codesPath: strings.TrimSuffix(path, ext) + ".codes.json",
	}, nil
}

func (s *FileStore) AppendHarvest(ctx context.Context, rec entities.HarvestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	for _, h := range list {
		if h.HarvestID == rec.HarvestID {
			return fmt.Errorf("%w: %s", ErrDuplicate, rec.HarvestID)
		}
	}
	return writeJSON(s.path, append(list, rec))
}

func (s *FileStore) UpdateHarvest(ctx context.Context, rec entities.HarvestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].HarvestID == rec.HarvestID {
			list[i] = rec
			return writeJSON(s.path, list)
		}
	}
	return fmt.Errorf("%w: harvest %s", ErrNotFound, rec.HarvestID)
}

func (s *FileStore) ListHarvests(ctx context.Context) ([]entities.HarvestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) GetHarvest(ctx context.Context, harvestID string) (entities.HarvestRecord, error) {
	list, err := s.ListHarvests(ctx)
	if err != nil {
		return entities.HarvestRecord{}, err
	}
	for _, h := range list {
		if h.HarvestID == harvestID {
			return h, nil
		}
	}
	return entities.HarvestRecord{}, fmt.Errorf("%w: harvest %s", ErrNotFound, harvestID)
}

func (s *FileStore) SaveCode(ctx context.Context, c Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadCodes()
	if err != nil {
		return err
	}
	codes[c.HarvestID] = c
	return writeJSON(s.codesPath, codes)
}

func (s *FileStore) LookupCode(ctx context.Context, harvestID string) (Code, error) {
	if err := ctx.Err(); err != nil {
		return Code{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadCodes()
	if err != nil {
		return Code{}, err
	}
	c, ok := codes[harvestID]
	if !ok {
		return Code{}, fmt.Errorf("%w: code for %s", ErrNotFound, harvestID)
	}
	return c, nil
}

func (s *FileStore) DeleteCode(ctx context.Context, harvestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadCodes()
	if err != nil {
		return err
	}
	if _, ok := codes[harvestID]; !ok {
		return nil
	}
	delete(codes, harvestID)
	return writeJSON(s.codesPath, codes)
}

func (s *FileStore) Close() error { return nil }

// load reads the harvest array; a missing or empty file is an empty log.
func (s *FileStore) load() ([]entities.HarvestRecord, error) {
	list := []entities.HarvestRecord{}
	if err := readJSON(s.path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *FileStore) loadCodes() (map[string]Code, error) {
	codes := map[string]Code{}
	if err := readJSON(s.codesPath, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically: temp file in the same dir, fsync, rename.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
