// Package history owns the speech generation lifecycle and a bounded,
// persisted history of results.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/book-expert/logger"

	"github.com/voicestudio/studio-client/internal/core"
	"github.com/voicestudio/studio-client/internal/gateway"
)

// History bounds. The in-memory cap and the persisted cap are
// intentionally different: the session keeps 20 results, a reload
// restores only the 10 most recent.
const (
	MemoryCap  = 20
	PersistCap = 10
)

// SnapshotKey is the blob key the persisted history slice lives under.
const SnapshotKey = "history.json"

// Gateway is the slice of the service client the history store depends on.
type Gateway interface {
	Generate(ctx context.Context, req gateway.GenerateRequest) (core.GenerationResult, error)
	DownloadAudio(ctx context.Context, audioURL string) ([]byte, error)
}

// Store owns the generation request lifecycle: a boolean in-flight flag,
// the most recent result, and a most-recent-first history. Overlapping
// Generate calls are not serialized; the flag models the single
// generation the UI has in flight, not a guarantee.
type Store struct {
	mu    sync.Mutex
	gw    Gateway
	blobs core.BlobStore
	log   *logger.Logger

	generating bool
	current    *core.GenerationResult
	entries    []core.GenerationResult
}

// New creates a history store. blobs may be nil to disable persistence
// and archiving.
func New(gw Gateway, blobs core.BlobStore, log *logger.Logger) *Store {
	return &Store{
		mu:         sync.Mutex{},
		gw:         gw,
		blobs:      blobs,
		log:        log,
		generating: false,
		current:    nil,
		entries:    nil,
	}
}

// persistedState is the serialization boundary for the history store:
// only the most recent PersistCap entries survive a restart.
type persistedState struct {
	History []core.GenerationResult `json:"history"`
}

// toPersisted reduces the in-memory history to its persisted subset.
func toPersisted(entries []core.GenerationResult) persistedState {
	kept := entries
	if len(kept) > PersistCap {
		kept = kept[:PersistCap]
	}

	persisted := make([]core.GenerationResult, len(kept))
	copy(persisted, kept)

	return persistedState{History: persisted}
}

// fromPersisted restores the persisted subset as the initial history.
func fromPersisted(state persistedState) []core.GenerationResult {
	entries := make([]core.GenerationResult, len(state.History))
	copy(entries, state.History)

	return entries
}

// Generate synthesizes speech for the request. On success the result
// becomes the current one, is prepended to history, and the history is
// truncated to MemoryCap; the persisted subset is then saved. On failure
// the in-flight flag is cleared and the error re-signaled without
// touching history.
func (s *Store) Generate(ctx context.Context, req gateway.GenerateRequest) (core.GenerationResult, error) {
	s.mu.Lock()
	s.generating = true
	s.mu.Unlock()

	result, err := s.gw.Generate(ctx, req)

	s.mu.Lock()
	s.generating = false

	if err != nil {
		s.mu.Unlock()

		return core.GenerationResult{}, fmt.Errorf("failed to generate speech: %w", err)
	}

	s.current = &result
	s.entries = append([]core.GenerationResult{result}, s.entries...)

	if len(s.entries) > MemoryCap {
		s.entries = s.entries[:MemoryCap]
	}

	snapshot := toPersisted(s.entries)
	s.mu.Unlock()

	s.save(ctx, snapshot)

	return result, nil
}

// ClearHistory empties the history and the current result. Irreversible;
// the persisted subset is overwritten with the empty state.
func (s *Store) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.entries = nil
	snapshot := toPersisted(nil)
	s.mu.Unlock()

	s.save(ctx, snapshot)
}

// ArchiveAudio downloads the generated audio behind a result and stores
// it in the blob store under the result's filename.
func (s *Store) ArchiveAudio(ctx context.Context, result core.GenerationResult) error {
	if s.blobs == nil {
		return nil
	}

	data, err := s.gw.DownloadAudio(ctx, result.AudioURL)
	if err != nil {
		return fmt.Errorf("failed to download audio for '%s': %w", result.Filename, err)
	}

	err = s.blobs.Upload(ctx, result.Filename, data)
	if err != nil {
		return fmt.Errorf("failed to archive audio '%s': %w", result.Filename, err)
	}

	s.log.Info("Archived audio: %s (%d bytes)", result.Filename, len(data))

	return nil
}

// Load restores the persisted history subset as the initial state. A
// missing snapshot is not an error; a corrupt one is.
func (s *Store) Load(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}

	data, err := s.blobs.Download(ctx, SnapshotKey)
	if err != nil {
		s.log.Info("No history snapshot restored: %v", err)

		return nil
	}

	var state persistedState

	err = json.Unmarshal(data, &state)
	if err != nil {
		return fmt.Errorf("failed to decode history snapshot: %w", err)
	}

	s.mu.Lock()
	s.entries = fromPersisted(state)
	s.mu.Unlock()

	return nil
}

// save writes the persisted subset. Persistence failures do not fail the
// operation that triggered them; they are logged.
func (s *Store) save(ctx context.Context, snapshot persistedState) {
	if s.blobs == nil {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error("Failed to encode history snapshot: %v", err)

		return
	}

	err = s.blobs.Upload(ctx, SnapshotKey, data)
	if err != nil {
		s.log.Error("Failed to persist history snapshot: %v", err)
	}
}

// Generating reports whether a generation is modeled as in flight.
func (s *Store) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generating
}

// Current returns a copy of the most recent result, or nil.
func (s *Store) Current() *core.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	current := *s.current

	return &current
}

// Entries returns a snapshot of the history, most recent first.
func (s *Store) Entries() []core.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]core.GenerationResult, len(s.entries))
	copy(snapshot, s.entries)

	return snapshot
}
