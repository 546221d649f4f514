package intake_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicestudio/studio-client/internal/intake"
)

const (
	testSampleRate  = 8000
	testSampleCount = 8000 // one second of audio
)

// writeTestWAV writes a minimal PCM WAV file (16-bit mono) with
// testSampleCount silent samples and returns its path.
func writeTestWAV(t *testing.T, dir, name string) string {
	t.Helper()

	dataLen := testSampleCount * 2

	var buf bytes.Buffer

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(testSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(testSampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	path := filepath.Join(dir, name)

	err := os.WriteFile(path, buf.Bytes(), 0o600)
	require.NoError(t, err)

	return path
}

func newTestStaging(t *testing.T) *intake.Staging {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "staging-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	staging, err := intake.NewStaging(t.TempDir(), testLogger)
	require.NoError(t, err)

	return staging
}

func TestDecodeDuration_WAV(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, t.TempDir(), "one-second.wav")

	duration, err := intake.DecodeDuration(path, "audio/wav")
	require.NoError(t, err)

	assert.InEpsilon(t, 1.0, duration, 0.01)
}

func TestDecodeDuration_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, t.TempDir(), "clip.webm")

	_, err := intake.DecodeDuration(path, "audio/webm")
	require.ErrorIs(t, err, intake.ErrDecodeUnsupported)
}

func TestDecodeDuration_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o600))

	_, err := intake.DecodeDuration(path, "audio/wav")
	require.ErrorIs(t, err, intake.ErrDecodeFailed)
}

func TestStaging_AddStagesValidFile(t *testing.T) {
	t.Parallel()

	staging := newTestStaging(t)
	path := writeTestWAV(t, t.TempDir(), "sample.wav")

	staged, err := staging.Add(path, "audio/wav")
	require.NoError(t, err)

	assert.NotEmpty(t, staged.ID)
	assert.Equal(t, "sample.wav", staged.Name)
	assert.InEpsilon(t, 1.0, staged.Duration, 0.01)
	assert.FileExists(t, staged.PreviewPath)

	files := staging.Files()
	require.Len(t, files, 1)
	assert.Equal(t, staged.ID, files[0].ID)
}

func TestStaging_AddRejectsDisallowedType(t *testing.T) {
	t.Parallel()

	staging := newTestStaging(t)
	path := writeTestWAV(t, t.TempDir(), "sample.wav")

	_, err := staging.Add(path, "video/mp4")
	require.ErrorIs(t, err, intake.ErrTypeNotAllowed)

	assert.Empty(t, staging.Files())
}

func TestStaging_RemoveReleasesPreview(t *testing.T) {
	t.Parallel()

	staging := newTestStaging(t)
	path := writeTestWAV(t, t.TempDir(), "sample.wav")

	staged, err := staging.Add(path, "audio/wav")
	require.NoError(t, err)

	err = staging.Remove(staged.ID)
	require.NoError(t, err)

	assert.Empty(t, staging.Files())
	assert.NoFileExists(t, staged.PreviewPath)

	err = staging.Remove(staged.ID)
	require.ErrorIs(t, err, intake.ErrFileNotStaged)
}

func TestStaging_DrainReleasesEverything(t *testing.T) {
	t.Parallel()

	staging := newTestStaging(t)
	dir := t.TempDir()

	first, err := staging.Add(writeTestWAV(t, dir, "first.wav"), "audio/wav")
	require.NoError(t, err)

	second, err := staging.Add(writeTestWAV(t, dir, "second.wav"), "audio/wav")
	require.NoError(t, err)

	drained := staging.Drain()
	require.Len(t, drained, 2)

	assert.Empty(t, staging.Files())
	assert.NoFileExists(t, first.PreviewPath)
	assert.NoFileExists(t, second.PreviewPath)
}
