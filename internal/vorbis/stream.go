package vorbis

import "github.com/optivorbis/optivorbis/internal/errs"

// Stream is the fully parsed header state for one Vorbis logical bitstream:
// the three header packets plus the derived model needed to walk audio
// packets and re-emit the setup header with new codebook codeword lengths.
type Stream struct {
	Serial uint32

	Identification *Identification
	Comment        *Comment
	Setup          *Setup
}

// ParseHeaders parses the three mandatory header packets in order. Per the
// Ogg/Vorbis framing rules they are always the first three packets of a
// Vorbis logical bitstream.
func ParseHeaders(serial uint32, idData, commentData, setupData []byte) (*Stream, error) {
	id, err := ReadIdentification(idData)
	if err != nil {
		return nil, err
	}
	comment, err := ReadComment(commentData)
	if err != nil {
		return nil, err
	}
	setup, err := ReadSetup(setupData, id.Channels)
	if err != nil {
		return nil, err
	}
	return &Stream{Serial: serial, Identification: id, Comment: comment, Setup: setup}, nil
}

// BlockSize returns the sample count of a block with the given flag
// (false = short, true = long).
func (s *Stream) BlockSize(long bool) int {
	exp := s.Identification.Blocksize0Exp
	if long {
		exp = s.Identification.Blocksize1Exp
	}
	return 1 << uint(exp)
}

// ModeByPacket returns the Mode selected by an audio packet's mode number
// (already read by the caller from the packet's first ModeNumberWidth
// bits), or an error if the number is out of range. It reads no bits; a
// long block's previous/next window flags are left to the caller.
func (s *Stream) ModeByPacket(modeBits uint32) (*Mode, error) {
	if int(modeBits) >= len(s.Setup.Modes) {
		return nil, errs.New(errs.VorbisHeaderMalformed, "audio packet mode number out of range")
	}
	return s.Setup.Modes[modeBits], nil
}

// ModeNumberWidth returns the number of bits used to encode a mode number
// in each audio packet, i.e. ilog(count-1).
func (s *Stream) ModeNumberWidth() uint {
	return uint(ilog(uint32(len(s.Setup.Modes) - 1)))
}
