package transcode

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
	"github.com/optivorbis/optivorbis/internal/vorbis"
)

// Packet walks one audio packet's mode/floor/residue structure against a
// parsed stream, driving codebook decode (and, on pass 2, re-emission)
// through ctx. It returns the number of PCM samples this packet
// contributes, per the overlap-add rule used for granule recomputation.
func Packet(data []byte, stream *vorbis.Stream, ctx *vorbis.TranscodeContext, prevLong, curLong *bool) (int, error) {
	r := bitpack.NewReader(data)

	modeWidth := stream.ModeNumberWidth()
	modeBits, err := ctx.PassUnsigned(r, modeWidth)
	if err != nil {
		return 0, errs.New(errs.VorbisHeaderMalformed, "read audio packet mode number").WithErr(err)
	}
	mode, err := stream.ModeByPacket(modeBits)
	if err != nil {
		return 0, err
	}

	long := mode.BlockFlag
	if long {
		if _, err := ctx.PassFlag(r); err != nil { // previous window flag
			return 0, errs.New(errs.BitpackEOF, "read previous window flag").WithErr(err)
		}
		if _, err := ctx.PassFlag(r); err != nil { // next window flag
			return 0, errs.New(errs.BitpackEOF, "read next window flag").WithErr(err)
		}
	}

	mapping := stream.Setup.Mappings[mode.Mapping]
	channels := stream.Identification.Channels

	nonZero := make([]bool, channels)
	blockSize := stream.BlockSize(long)
	n := blockSize / 2

	for ch := 0; ch < channels; ch++ {
		submap := 0
		if mapping.Submaps > 1 {
			submap = mapping.MuxForChannel[ch]
		}
		floorID := mapping.SubmapFloor[submap]
		floor := floorByID(stream.Setup.Floors, floorID)
		if floor == nil {
			return 0, errs.New(errs.VorbisHeaderMalformed, "mapping floor id out of range")
		}
		ok, err := floor.Transcode(r, ctx)
		if err != nil {
			return 0, err
		}
		nonZero[ch] = ok
	}

	doNotDecode := make([]bool, channels)
	for ch := range doNotDecode {
		doNotDecode[ch] = !nonZero[ch]
	}

	// Group channels by submap so each residue is decoded once, across all
	// channels that share it. Submaps are walked in ascending order since
	// that order is part of the bitstream, not just bookkeeping.
	bySubmap := make([][]int, mapping.Submaps)
	for ch := 0; ch < channels; ch++ {
		submap := 0
		if mapping.Submaps > 1 {
			submap = mapping.MuxForChannel[ch]
		}
		bySubmap[submap] = append(bySubmap[submap], ch)
	}
	for submap, chans := range bySubmap {
		if len(chans) == 0 {
			continue
		}
		residueID := mapping.SubmapResidue[submap]
		residue := residueByID(stream.Setup.Residues, residueID)
		if residue == nil {
			return 0, errs.New(errs.VorbisHeaderMalformed, "mapping residue id out of range")
		}
		mask := make([]bool, len(chans))
		for i, ch := range chans {
			mask[i] = doNotDecode[ch]
		}
		if err := residue.Transcode(r, ctx, mask, n); err != nil {
			return 0, err
		}
	}

	samples := 0
	if prevLong != nil {
		prevSize := blockSize
		if *prevLong != long {
			// Mixed short/long transition: overlap uses half of each block.
			if *prevLong {
				prevSize = stream.BlockSize(true)
			} else {
				prevSize = stream.BlockSize(false)
			}
		}
		samples = prevSize/4 + blockSize/4
	}
	if curLong != nil {
		*curLong = long
	}
	return samples, nil
}

func floorByID(floors []*vorbis.Floor1, id int) *vorbis.Floor1 {
	if id < 0 || id >= len(floors) {
		return nil
	}
	return floors[id]
}

func residueByID(residues []*vorbis.Residue, id int) *vorbis.Residue {
	if id < 0 || id >= len(residues) {
		return nil
	}
	return residues[id]
}
