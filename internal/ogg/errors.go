package ogg

import "errors"

// Package-level sentinel errors for Ogg parsing and encoding. Callers that
// need byte-offset/serial/packet context wrap these with the errs package.
var (
	// ErrInvalidPage indicates the page structure is malformed: missing
	// "OggS" magic, unsupported version, or truncated header/segment table.
	ErrInvalidPage = errors.New("ogg: invalid page structure")

	// ErrBadCRC indicates the page CRC checksum does not match the computed
	// value, typically indicating data corruption.
	ErrBadCRC = errors.New("ogg: CRC mismatch")

	// ErrUnexpectedEOS indicates the stream ended unexpectedly: a page was
	// truncated or data ended mid-packet.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")

	// ErrSequenceGap indicates a page's sequence number skipped ahead of or
	// behind the expected value for its stream. Tolerated in repair mode.
	ErrSequenceGap = errors.New("ogg: page sequence gap")
)
