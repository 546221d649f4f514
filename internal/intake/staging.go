package intake

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

// File and directory permissions for preview copies.
const (
	previewFilePermissions = 0o600
	previewDirPermissions  = 0o750
)

// ErrFileNotStaged indicates a removal for an id that is not staged.
var ErrFileNotStaged = errors.New("file is not staged")

// IntakeFile is a locally staged, not-yet-submitted audio sample. The
// preview path points at a private copy owned by the staging area; it is
// released when the file is removed or the staged set is drained.
type IntakeFile struct {
	ID          string
	Path        string
	Name        string
	MIMEType    string
	Size        int64
	Duration    float64
	PreviewPath string
}

// Staging holds the audio files a user has selected for an upcoming clone
// submission. Files enter only after passing Validate; staged entries are
// consumed to build the clone request and then discarded.
type Staging struct {
	mu         sync.Mutex
	previewDir string
	files      []IntakeFile
	log        *logger.Logger
}

// NewStaging creates a staging area whose preview copies live under
// previewDir.
func NewStaging(previewDir string, log *logger.Logger) (*Staging, error) {
	err := os.MkdirAll(previewDir, previewDirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}

	return &Staging{
		mu:         sync.Mutex{},
		previewDir: previewDir,
		files:      nil,
		log:        log,
	}, nil
}

// Add validates the file at path, decodes its duration, materializes a
// preview copy, and stages it under a freshly generated id. A format that
// has no local metadata decoder is staged with a zero duration; a file
// the decoder rejects is not staged.
func (s *Staging) Add(path, mimeType string) (IntakeFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return IntakeFile{}, fmt.Errorf("failed to stat file: %w", err)
	}

	name := filepath.Base(path)

	err = Validate(name, mimeType, info.Size())
	if err != nil {
		return IntakeFile{}, err
	}

	duration, err := DecodeDuration(path, mimeType)
	if err != nil {
		if !errors.Is(err, ErrDecodeUnsupported) {
			return IntakeFile{}, err
		}

		s.log.Warn("No duration decoder for %s (%s), staging without duration", name, mimeType)
	}

	staged := IntakeFile{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        name,
		MIMEType:    mimeType,
		Size:        info.Size(),
		Duration:    duration,
		PreviewPath: "",
	}

	previewPath, err := s.writePreview(staged.ID, path, name)
	if err != nil {
		return IntakeFile{}, err
	}

	staged.PreviewPath = previewPath

	s.mu.Lock()
	s.files = append(s.files, staged)
	s.mu.Unlock()

	return staged, nil
}

// Files returns a snapshot of the staged files in insertion order.
func (s *Staging) Files() []IntakeFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]IntakeFile, len(s.files))
	copy(snapshot, s.files)

	return snapshot
}

// Remove unstages the file with the given id and releases its preview
// copy.
func (s *Staging) Remove(id string) error {
	s.mu.Lock()

	index := -1

	for i, file := range s.files {
		if file.ID == id {
			index = i

			break
		}
	}

	if index < 0 {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrFileNotStaged, id)
	}

	released := s.files[index]
	s.files = append(s.files[:index], s.files[index+1:]...)
	s.mu.Unlock()

	s.releasePreview(released)

	return nil
}

// Drain removes every staged file, releasing all preview copies, and
// returns the drained set. It is called after a successful clone
// submission consumes the staged files.
func (s *Staging) Drain() []IntakeFile {
	s.mu.Lock()
	drained := s.files
	s.files = nil
	s.mu.Unlock()

	for _, file := range drained {
		s.releasePreview(file)
	}

	return drained
}

// writePreview copies the source file into the preview directory under an
// id-scoped name.
func (s *Staging) writePreview(id, path, name string) (string, error) {
	source, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for preview: %w", err)
	}

	defer func() {
		closeErr := source.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close source file '%s': %v", path, closeErr)
		}
	}()

	previewPath := filepath.Join(s.previewDir, id+"_"+name)

	preview, err := os.OpenFile(
		previewPath,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		previewFilePermissions,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}

	_, copyErr := io.Copy(preview, source)
	closeErr := preview.Close()

	if copyErr != nil {
		return "", fmt.Errorf("failed to copy preview data: %w", copyErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close preview file: %w", closeErr)
	}

	return previewPath, nil
}

// releasePreview deletes a preview copy. Release happens exactly once per
// staged file; a missing preview is only logged.
func (s *Staging) releasePreview(file IntakeFile) {
	if file.PreviewPath == "" {
		return
	}

	err := os.Remove(file.PreviewPath)
	if err != nil {
		s.log.Warn("Failed to release preview '%s': %v", file.PreviewPath, err)
	}
}
