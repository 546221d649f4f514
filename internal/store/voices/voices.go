// Package voices implements the client-side voice registry: a cache of
// the voices known to the service, the current selection, and the
// fetch/clone/delete operations with their optimistic-update semantics.
package voices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/voicestudio/studio-client/internal/core"
	"github.com/voicestudio/studio-client/internal/gateway"
)

// ErrAwaitAborted indicates a status poll ended before the voice reached
// a terminal state.
var ErrAwaitAborted = errors.New("voice status polling aborted")

// Gateway is the slice of the service client the registry depends on.
type Gateway interface {
	ListVoices(ctx context.Context) ([]core.Voice, error)
	VoiceStatus(ctx context.Context, id string) (gateway.VoiceStatusResponse, error)
	CloneVoice(ctx context.Context, req gateway.CloneRequest) (gateway.CloneResponse, error)
	DeleteVoice(ctx context.Context, id string) (gateway.DeleteResponse, error)
}

// Store is the process-wide voice registry. It is the sole mutator of its
// state; collaborators are injected at construction so the store is
// testable without a rendering environment.
type Store struct {
	mu       sync.Mutex
	gw       Gateway
	notifier core.Notifier
	log      *logger.Logger
	now      func() time.Time

	voices      []core.Voice
	selected    *core.Voice
	loading     bool
	lastErr     error
	fetchSeq    uint64
	provisional map[string]struct{}
}

// New creates a registry store. now may be nil, in which case time.Now is
// used.
func New(gw Gateway, notifier core.Notifier, log *logger.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}

	return &Store{
		mu:          sync.Mutex{},
		gw:          gw,
		notifier:    notifier,
		log:         log,
		now:         now,
		voices:      nil,
		selected:    nil,
		loading:     false,
		lastErr:     nil,
		fetchSeq:    0,
		provisional: make(map[string]struct{}),
	}
}

// FetchAll replaces the entire voice list with the server's catalog. On
// failure the previous list is kept, the error is recorded, and the user
// is notified. Overlapping calls are not suppressed; each call is stamped
// with a sequence number and responses that are no longer the latest are
// discarded, so a slow early response cannot overwrite a newer one.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	list, err := s.gw.ListVoices(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.fetchSeq {
		// A newer fetch is in flight or already resolved; this
		// response is stale either way.
		return nil
	}

	s.loading = false

	if err != nil {
		s.lastErr = err
		s.notifier.Notify(core.NotifyError, gateway.HumanizeError(err))

		return fmt.Errorf("failed to fetch voices: %w", err)
	}

	s.voices = list
	s.lastErr = nil

	// The server catalog is authoritative; every provisional record is
	// now reconciled, whether or not it appears in the new list.
	s.provisional = make(map[string]struct{})

	return nil
}

// Select replaces the current selection. A nil voice clears it. No
// network effect.
func (s *Store) Select(voice *core.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if voice == nil {
		s.selected = nil

		return
	}

	selected := *voice
	s.selected = &selected
}

// Delete removes a voice on the server and, on success, splices exactly
// the matching entry out of the cached list, clearing the selection if it
// pointed at the deleted voice. On failure the state is left untouched
// and the error is re-signaled for the caller to handle.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.gw.DeleteVoice(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete voice %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, voice := range s.voices {
		if voice.ID == id {
			s.voices = append(s.voices[:i:i], s.voices[i+1:]...)

			break
		}
	}

	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}

	delete(s.provisional, id)

	return nil
}

// Clone submits a clone request and, on success, prepends a provisional
// voice record built from the request: status processing, the submitted
// name and description, the file count as sample count, and a client
// timestamp. The record is locally optimistic until the next FetchAll
// replaces it with the server's authoritative row. On failure the error
// is recorded and re-signaled with no state mutation.
func (s *Store) Clone(ctx context.Context, req gateway.CloneRequest) (core.Voice, error) {
	resp, err := s.gw.CloneVoice(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		return core.Voice{}, fmt.Errorf("failed to clone voice %q: %w", req.Name, err)
	}

	voice := core.Voice{
		ID:          resp.VoiceID,
		Name:        req.Name,
		Description: req.Description,
		Status:      core.VoiceStatusProcessing,
		CreatedAt:   s.now(),
		Language:    "",
		SampleCount: len(req.Files),
		Duration:    0,
		PreviewURL:  "",
	}

	s.mu.Lock()
	s.voices = append([]core.Voice{voice}, s.voices...)
	s.provisional[voice.ID] = struct{}{}
	s.mu.Unlock()

	s.log.Info("Voice cloning started for %q (id %s)", req.Name, resp.VoiceID)

	return voice, nil
}

// AwaitReady polls the voice status at the given interval until the voice
// reaches a terminal state or ctx is done. Each observed status is folded
// into the cached record.
func (s *Store) AwaitReady(
	ctx context.Context,
	id string,
	interval time.Duration,
) (core.VoiceStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := s.gw.VoiceStatus(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to poll voice status for %s: %w", id, err)
		}

		s.applyStatus(id, status.Status)

		if status.Status.Terminal() {
			return status.Status, nil
		}

		select {
		case <-ctx.Done():
			return status.Status, fmt.Errorf("%w: %w", ErrAwaitAborted, ctx.Err())
		case <-ticker.C:
		}
	}
}

// applyStatus updates the cached status of one voice.
func (s *Store) applyStatus(id string, status core.VoiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.voices {
		if s.voices[i].ID == id {
			s.voices[i].Status = status

			return
		}
	}
}

// Voices returns a snapshot of the cached voice list.
func (s *Store) Voices() []core.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]core.Voice, len(s.voices))
	copy(snapshot, s.voices)

	return snapshot
}

// Selected returns a copy of the current selection, or nil.
func (s *Store) Selected() *core.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return nil
	}

	selected := *s.selected

	return &selected
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// LastError returns the most recent fetch or clone failure, or nil.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// Provisional reports whether the voice with the given id is a locally
// optimistic record not yet confirmed by a full fetch.
func (s *Store) Provisional(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.provisional[id]

	return ok
}
