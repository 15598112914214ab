package split

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Options controls encoding and segmentation.
type Options struct {
	SegmentLength time.Duration `validate:"gte=1s"`
	Bitrate       int           `validate:"min=8,max=320"` // kbps
	SampleRate    int           `validate:"oneof=8000 11025 16000 22050 32000 44100 48000"`
	Codec         string        `validate:"required"`
	Extension     string        `validate:"required,alphanum"`

	// Blind mode bounds, used when the converted audio has no known duration.
	MaxBlindParts int   `validate:"min=1,max=10000"`
	MinPartBytes  int64 `validate:"min=0"`
}

// DefaultOptions returns 30-minute parts at 192 kbps, 44.1 kHz MP3.
func DefaultOptions() Options {
	return Options{
		SegmentLength: 1800 * time.Second,
		Bitrate:       192,
		SampleRate:    44100,
		Codec:         "libmp3lame",
		Extension:     "mp3",
		MaxBlindParts: 100,
		MinPartBytes:  1000,
	}
}

var validate = validator.New()

// Validate checks every field is in range.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// encodeArgs are the audio encoding arguments shared by conversion and slicing.
func (o Options) encodeArgs() []string {
	return []string{
		"-acodec", o.Codec,
		"-ab", fmt.Sprintf("%dk", o.Bitrate),
		"-ar", fmt.Sprintf("%d", o.SampleRate),
	}
}
