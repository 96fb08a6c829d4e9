package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/storage"
)

// SettingsFileName is the JSON document holding every key.
const SettingsFileName = "settings.json"

// FileSettingsRepository keeps console settings in a single JSON object on disk.
type FileSettingsRepository struct {
	storage  *storage.LocalStorage
	filename string
	mu       sync.Mutex
}

// NewFileSettingsRepository constructs a file-backed settings repository.
func NewFileSettingsRepository(store *storage.LocalStorage) *FileSettingsRepository {
	return &FileSettingsRepository{storage: store, filename: SettingsFileName}
}

// Get returns the stored value or appErrors.ErrSettingsMiss.
func (r *FileSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", appErrors.ErrSettingsMiss
	}
	return value, nil
}

// Set rewrites the document with the key updated. A corrupt document is replaced.
func (r *FileSettingsRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		values = map[string]string{}
	}
	values[key] = value

	payload, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := r.storage.Save(r.filename, payload); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *FileSettingsRepository) read() (map[string]string, error) {
	file, err := r.storage.Open(r.filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer file.Close() //nolint:errcheck

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	values := map[string]string{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return values, nil
}
