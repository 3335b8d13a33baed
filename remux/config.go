// Package remux implements the two-pass Ogg Vorbis rewriter: demultiplex
// the input container, rebuild every Vorbis logical bitstream's codebooks
// around a length-limited optimal prefix code, and re-encapsulate the
// result as a tightly packed Ogg stream.
package remux

import (
	"github.com/sirupsen/logrus"

	"github.com/optivorbis/optivorbis/internal/vorbis"
)

// Config mirrors the ogg2ogg remuxer's CLI-exposed options.
type Config struct {
	// RandomizeStreamSerials assigns fresh random serials to every output
	// logical stream instead of reusing the input's.
	RandomizeStreamSerials bool

	// FirstStreamSerialOffset is added to each retained input serial when
	// RandomizeStreamSerials is false.
	FirstStreamSerialOffset uint32

	// IgnoreStartSampleOffset, when true, treats the first audio page's
	// granule position as if it started at zero rather than honoring a
	// nonzero encoder-declared pre-skip.
	IgnoreStartSampleOffset bool

	// ErrorOnNoVorbisStreams controls whether an input with zero Vorbis
	// logical bitstreams is a hard failure or produces empty output.
	ErrorOnNoVorbisStreams bool

	VendorAction vorbis.VendorAction
	FieldsAction vorbis.FieldsAction

	// RepairMode tolerates Ogg page sequence gaps on the input instead of
	// failing the remux.
	RepairMode bool

	// Logger receives structured progress/warning messages; nil disables
	// logging.
	Logger *logrus.Entry

	// Rand supplies serial numbers when RandomizeStreamSerials is set; nil
	// falls back to internal/prng's default OS/SOURCE_DATE_EPOCH source.
	Rand interface{ Uint32() uint32 }
}

// DefaultConfig matches the CLI's documented defaults.
func DefaultConfig() Config {
	return Config{
		RandomizeStreamSerials: true,
		ErrorOnNoVorbisStreams: true,
	}
}
