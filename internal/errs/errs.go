// Package errs defines the typed error kinds used throughout the remuxer,
// modeled on the standard library's os.PathError: a small sentinel Kind
// plus whatever positional context (byte offset, stream serial, packet
// ordinal) was available when the error occurred.
package errs

import "fmt"

// Kind identifies the class of failure. Kinds are stable and safe to
// switch on with errors.As.
type Kind int

const (
	// Unknown is the zero value; never constructed intentionally.
	Unknown Kind = iota

	// BitpackEOF: the bit stream ended mid-integer.
	BitpackEOF

	// OggCorruptedPage: capture pattern or CRC mismatch.
	OggCorruptedPage

	// OggStructural: segment table inconsistency, truncation, unknown version.
	OggStructural

	// VorbisHeaderMalformed: magic/type/framing/sync violation.
	VorbisHeaderMalformed

	// VorbisUnsupported: floor-0, unknown residue/mapping type, codebook too large.
	VorbisUnsupported

	// CodebookInvalid: non-uniquely-decodable prefix code, Kraft violation,
	// lookup failure during decode.
	CodebookInvalid

	// OptimizationInfeasible: no length-limited code fits under L=32.
	OptimizationInfeasible

	// IO: underlying read/write failure.
	IO

	// NoVorbisStreams: the Ogg container had no Vorbis logical bitstream.
	NoVorbisStreams

	// ConfigInvalid: CLI/option parse failure.
	ConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case BitpackEOF:
		return "BitpackEOF"
	case OggCorruptedPage:
		return "OggCorruptedPage"
	case OggStructural:
		return "OggStructural"
	case VorbisHeaderMalformed:
		return "VorbisHeaderMalformed"
	case VorbisUnsupported:
		return "VorbisUnsupported"
	case CodebookInvalid:
		return "CodebookInvalid"
	case OptimizationInfeasible:
		return "OptimizationInfeasible"
	case IO:
		return "Io"
	case NoVorbisStreams:
		return "NoVorbisStreams"
	case ConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// Error carries a Kind plus whatever positional context was available: byte
// offset within the input, the owning stream's serial number, and the
// ordinal of the packet being processed. Any of these may be absent (the
// corresponding Has* field is false) since not every error site knows all
// three.
type Error struct {
	Kind Kind
	Op   string // what was being attempted, e.g. "parse setup header"

	Offset    int64
	HasOffset bool

	Serial    uint32
	HasSerial bool

	PacketOrdinal    int64
	HasPacketOrdinal bool

	Err error // underlying cause, if any
}

func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

func (e *Error) WithOffset(offset int64) *Error {
	e.Offset = offset
	e.HasOffset = true
	return e
}

func (e *Error) WithSerial(serial uint32) *Error {
	e.Serial = serial
	e.HasSerial = true
	return e
}

func (e *Error) WithPacket(ordinal int64) *Error {
	e.PacketOrdinal = ordinal
	e.HasPacketOrdinal = true
	return e
}

func (e *Error) WithErr(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.HasSerial {
		msg += fmt.Sprintf(" (stream %d)", e.Serial)
	}
	if e.HasPacketOrdinal {
		msg += fmt.Sprintf(" (packet #%d)", e.PacketOrdinal)
	}
	if e.HasOffset {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if oe, ok := err.(*Error); ok {
			e = oe
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
