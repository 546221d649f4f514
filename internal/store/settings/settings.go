// Package settings owns the user-adjustable generation parameters and
// the synthesis language catalog.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/book-expert/logger"

	"github.com/voicestudio/studio-client/internal/core"
)

// Parameter bounds and defaults, matching the service's own validation.
const (
	TemperatureMin = 0.1
	TemperatureMax = 1.0
	SpeedMin       = 0.5
	SpeedMax       = 2.0

	DefaultTemperature = 0.7
	DefaultSpeed       = 1.0
	DefaultLanguage    = "de"
)

// SnapshotKey is the blob key the persisted settings live under. Only the
// settings are persisted; the language catalog is re-derived at startup.
const SnapshotKey = "settings.json"

// fallbackLanguages is substituted when the catalog fetch fails. Order is
// part of the contract.
var fallbackLanguages = []core.LanguageEntry{
	{Code: "de", Name: "Deutsch"},
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Español"},
	{Code: "fr", Name: "Français"},
	{Code: "it", Name: "Italiano"},
	{Code: "pt", Name: "Português"},
}

// FallbackLanguages returns a copy of the fixed six-language fallback
// catalog in its documented order.
func FallbackLanguages() []core.LanguageEntry {
	catalog := make([]core.LanguageEntry, len(fallbackLanguages))
	copy(catalog, fallbackLanguages)

	return catalog
}

// Gateway is the slice of the service client the settings store depends on.
type Gateway interface {
	ListLanguages(ctx context.Context) ([]core.LanguageEntry, error)
}

// Partial is a shallow update to the generation settings; nil fields are
// left unchanged.
type Partial struct {
	Temperature *float64
	Speed       *float64
	Language    *string
}

// Store holds one GenerationSettings instance per client session plus the
// language catalog.
type Store struct {
	mu    sync.Mutex
	gw    Gateway
	blobs core.BlobStore
	log   *logger.Logger

	settings  core.GenerationSettings
	languages []core.LanguageEntry
}

// New creates a settings store initialized to the defaults. blobs may be
// nil to disable persistence.
func New(gw Gateway, blobs core.BlobStore, log *logger.Logger) *Store {
	return &Store{
		mu:    sync.Mutex{},
		gw:    gw,
		blobs: blobs,
		log:   log,
		settings: core.GenerationSettings{
			Temperature: DefaultTemperature,
			Speed:       DefaultSpeed,
			Language:    DefaultLanguage,
		},
		languages: nil,
	}
}

// Update shallow-merges the partial into the current settings and
// persists the result. Out-of-range values are clamped to the documented
// bounds rather than rejected, so Update is total and deterministic.
func (s *Store) Update(ctx context.Context, partial Partial) core.GenerationSettings {
	s.mu.Lock()

	if partial.Temperature != nil {
		s.settings.Temperature = clamp(*partial.Temperature, TemperatureMin, TemperatureMax)
	}

	if partial.Speed != nil {
		s.settings.Speed = clamp(*partial.Speed, SpeedMin, SpeedMax)
	}

	if partial.Language != nil {
		s.settings.Language = *partial.Language
	}

	updated := s.settings
	s.mu.Unlock()

	s.save(ctx, updated)

	return updated
}

// FetchLanguages fetches the language catalog. On failure the fixed
// six-language fallback is substituted and the failure is logged without
// being surfaced to the user. The resulting catalog is returned.
func (s *Store) FetchLanguages(ctx context.Context) []core.LanguageEntry {
	catalog, err := s.gw.ListLanguages(ctx)
	if err != nil {
		s.log.Warn("Language catalog fetch failed, using fallback: %v", err)

		catalog = FallbackLanguages()
	}

	s.mu.Lock()
	s.languages = catalog
	s.mu.Unlock()

	return s.Languages()
}

// Load restores persisted settings. A missing snapshot leaves the
// defaults in place; a corrupt one is an error.
func (s *Store) Load(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}

	data, err := s.blobs.Download(ctx, SnapshotKey)
	if err != nil {
		s.log.Info("No settings snapshot restored: %v", err)

		return nil
	}

	var restored core.GenerationSettings

	err = json.Unmarshal(data, &restored)
	if err != nil {
		return fmt.Errorf("failed to decode settings snapshot: %w", err)
	}

	s.mu.Lock()
	s.settings = restored
	s.mu.Unlock()

	return nil
}

// save persists the settings. Persistence failures are logged, not
// propagated.
func (s *Store) save(ctx context.Context, settings core.GenerationSettings) {
	if s.blobs == nil {
		return
	}

	data, err := json.Marshal(settings)
	if err != nil {
		s.log.Error("Failed to encode settings snapshot: %v", err)

		return
	}

	err = s.blobs.Upload(ctx, SnapshotKey, data)
	if err != nil {
		s.log.Error("Failed to persist settings snapshot: %v", err)
	}
}

// Settings returns the current generation settings.
func (s *Store) Settings() core.GenerationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// Languages returns a snapshot of the language catalog.
func (s *Store) Languages() []core.LanguageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]core.LanguageEntry, len(s.languages))
	copy(snapshot, s.languages)

	return snapshot
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}

	if value > high {
		return high
	}

	return value
}
