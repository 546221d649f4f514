package intake

import (
	"errors"
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// Static errors.
var (
	// ErrDecodeUnsupported indicates the format passes intake policy but
	// has no local metadata decoder (currently audio/webm).
	ErrDecodeUnsupported = errors.New("duration decoding not supported for this format")

	// ErrDecodeFailed indicates the decoder rejected the file contents.
	ErrDecodeFailed = errors.New("failed to decode audio file")
)

// DecodeDuration decodes the media metadata of an audio file and returns
// its duration in seconds. Each call opens and decodes independently, so
// concurrent decodes do not serialize.
func DecodeDuration(path, mimeType string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}

	streamer, format, err := decodeByType(file, mimeType)
	if err != nil {
		_ = file.Close()

		return 0, err
	}

	total := format.SampleRate.D(streamer.Len())

	closeErr := streamer.Close()
	if closeErr != nil {
		return total.Seconds(), fmt.Errorf("failed to close decoder: %w", closeErr)
	}

	return total.Seconds(), nil
}

// decodeByType selects the decoder for the declared MIME type. The
// decoders take ownership of the file; closing the returned streamer
// closes it.
func decodeByType(file *os.File, mimeType string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch mimeType {
	case "audio/wav", "audio/x-wav":
		streamer, format, err = wav.Decode(file)
	case "audio/mp3", "audio/mpeg":
		streamer, format, err = mp3.Decode(file)
	case "audio/ogg":
		streamer, format, err = vorbis.Decode(file)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrDecodeUnsupported, mimeType)
	}

	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, file.Name(), err)
	}

	return streamer, format, nil
}
