package vorbis

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

// Codewords holds, per stream codebook, the new canonical codeword (value
// and length) for every used entry, computed once after pass 1's usage
// counts are turned into new lengths. Pass 2 looks entries up here instead
// of recomputing the canonical assignment per symbol.
type Codewords struct {
	Lengths []int
	Codes   []uint32
}

// TranscodeContext bundles what Floor1.Transcode/Residue.Transcode need to
// walk an audio packet: the stream's codebooks for decode, and (on pass 2
// only) the new codeword table to emit through. New is nil on pass 1: the
// walk then only decodes (accumulating usage via Codebook.Decode) and
// emits nothing.
type TranscodeContext struct {
	Books []*Codebook
	New   []*Codewords // nil slice means pass 1; on pass 2 every entry must be set
	W     *bitpack.Writer
}

func (ctx *TranscodeContext) passTwo() bool { return ctx.W != nil && ctx.New != nil }

// decodeAndEmit decodes one symbol from book bookID and, on pass 2, emits
// its new codeword.
func (ctx *TranscodeContext) decodeAndEmit(r *bitpack.Reader, bookID int) (int, error) {
	book := bookByID(ctx.Books, bookID)
	if book == nil {
		return 0, errs.New(errs.CodebookInvalid, "codebook id out of range")
	}
	entry, err := book.Decode(r)
	if err != nil {
		return 0, err
	}
	if ctx.passTwo() {
		cw := ctx.New[bookID]
		emitCodeword(ctx.W, cw.Codes[entry], cw.Lengths[entry])
	}
	return entry, nil
}

// PassUnsigned reads width raw bits and, on pass 2, writes the same value
// back verbatim (these bits are never touched by optimization). Exported
// for the packet-level driver outside this package (mode number, window
// shape bits); Floor1/Residue use it internally under its lowercase alias.
func (ctx *TranscodeContext) PassUnsigned(r *bitpack.Reader, width uint) (uint32, error) {
	v, err := r.ReadUnsigned(width)
	if err != nil {
		return 0, err
	}
	if ctx.passTwo() {
		ctx.W.WriteUnsigned(v, width)
	}
	return v, nil
}

func (ctx *TranscodeContext) passUnsigned(r *bitpack.Reader, width uint) (uint32, error) {
	return ctx.PassUnsigned(r, width)
}

// PassFlag is PassUnsigned's one-bit counterpart.
func (ctx *TranscodeContext) PassFlag(r *bitpack.Reader) (bool, error) {
	v, err := r.ReadFlag()
	if err != nil {
		return false, err
	}
	if ctx.passTwo() {
		ctx.W.WriteFlag(v)
	}
	return v, nil
}

func (ctx *TranscodeContext) passFlag(r *bitpack.Reader) (bool, error) {
	return ctx.PassFlag(r)
}

// emitCodeword writes a canonical codeword MSB-first, matching the bit
// order Codebook.Decode's tree walk consumes.
func emitCodeword(w *bitpack.Writer, code uint32, length int) {
	for bit := length - 1; bit >= 0; bit-- {
		w.WriteFlag((code>>uint(bit))&1 == 1)
	}
}

