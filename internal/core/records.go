// Package core defines the domain records and interfaces shared across the
// studio client: voices, generation results, settings, and the persistence
// and notification capabilities the stores depend on.
package core

import "time"

// VoiceStatus represents the lifecycle state of a voice on the server.
type VoiceStatus string

// Voice lifecycle states. A voice moves from processing or training to
// ready or error; ready and error are terminal from the client's view.
const (
	VoiceStatusProcessing VoiceStatus = "processing"
	VoiceStatusTraining   VoiceStatus = "training"
	VoiceStatusReady      VoiceStatus = "ready"
	VoiceStatusError      VoiceStatus = "error"
)

// Terminal reports whether the status is one the client should stop
// polling for.
func (s VoiceStatus) Terminal() bool {
	return s == VoiceStatusReady || s == VoiceStatusError
}

// Voice is a named, cloneable speech identity derived from uploaded audio
// samples. The server owns the authoritative record; the registry store
// caches it.
type Voice struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      VoiceStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Language    string      `json:"language,omitempty"`
	SampleCount int         `json:"sample_count"`
	Duration    float64     `json:"duration,omitempty"`
	PreviewURL  string      `json:"preview_url,omitempty"`
}

// GenerationResult is a single completed text-to-speech synthesis.
// Results are immutable once created.
type GenerationResult struct {
	AudioURL    string    `json:"audio_url"`
	Filename    string    `json:"filename"`
	Duration    float64   `json:"duration"`
	Text        string    `json:"text"`
	VoiceID     string    `json:"voice_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GenerationSettings holds the user-adjustable synthesis parameters.
// Temperature is bounded to [0.1, 1.0] and speed to [0.5, 2.0] by the
// settings store.
type GenerationSettings struct {
	Temperature float64 `json:"temperature"`
	Speed       float64 `json:"speed"`
	Language    string  `json:"language"`
}

// LanguageEntry is one entry of the synthesis language catalog.
type LanguageEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
