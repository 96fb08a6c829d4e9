package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// DefaultSortKey is the storage key used when none is configured.
const DefaultSortKey = "school_console.sort"

// KeyValueStore is a flat durable key-value space. Get returns
// appErrors.ErrSettingsMiss when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type writeObserver interface {
	ObserveSettingsWrite(duration time.Duration, err error)
}

// Adapter loads and saves the sort preference. Loading never fails: a missing or
// unreadable value is reported as absent and the caller applies its default.
type Adapter struct {
	store   KeyValueStore
	key     string
	logger  *zap.Logger
	metrics writeObserver
}

// NewAdapter constructs an Adapter. metrics may be nil.
func NewAdapter(store KeyValueStore, key string, logger *zap.Logger, metrics writeObserver) *Adapter {
	if key == "" {
		key = DefaultSortKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, key: key, logger: logger, metrics: metrics}
}

// LoadSortPreference returns the persisted sort spec, or false when none is usable.
func (a *Adapter) LoadSortPreference(ctx context.Context) (models.SortSpec, bool) {
	if a == nil || a.store == nil {
		return models.SortSpec{}, false
	}
	raw, err := a.store.Get(ctx, a.key)
	if err != nil {
		if !errors.Is(err, appErrors.ErrSettingsMiss) {
			a.logger.Warn("sort preference read failed", zap.String("key", a.key), zap.Error(err))
		}
		return models.SortSpec{}, false
	}
	var spec models.SortSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		a.logger.Warn("sort preference corrupt", zap.String("key", a.key), zap.Error(err))
		return models.SortSpec{}, false
	}
	if !spec.Valid() {
		a.logger.Warn("sort preference invalid", zap.String("key", a.key), zap.String("field", string(spec.Field)), zap.String("order", string(spec.Order)))
		return models.SortSpec{}, false
	}
	return spec, true
}

// SaveSortPreference persists the sort spec under the configured key.
func (a *Adapter) SaveSortPreference(ctx context.Context, spec models.SortSpec) error {
	if a == nil || a.store == nil {
		return nil
	}
	if !spec.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sort preference")
	}
	payload, err := json.Marshal(spec)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode sort preference")
	}
	start := time.Now()
	err = a.store.Set(ctx, a.key, string(payload))
	if a.metrics != nil {
		a.metrics.ObserveSettingsWrite(time.Since(start), err)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save sort preference")
	}
	return nil
}
