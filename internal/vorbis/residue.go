package vorbis

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

// Residue is the in-memory model of one setup-header residue entry (types
// 0, 1 and 2). The classification/cascade decode loop below mirrors the
// standard residue decode shape (classbook-driven classword decode, then
// up to 8 cascade passes of vector-codebook reads) but, like Floor1, never
// reconstructs the actual spectral values: this repo tracks which
// codebook entries were read, not what they numerically mean.
type Residue struct {
	ID int

	Type            int
	Begin, End      int
	PartitionSize   int
	Classifications int
	Classbook       int

	// Cascade[class] is a bitmask of up to 8 cascade passes; Books[class][p]
	// is the codebook id for pass p of that class, or -1 if the cascade bit
	// for p is clear.
	Cascade []int
	Books   [][8]int
}

// ReadResidue parses one residue header entry.
func ReadResidue(r *bitpack.Reader, id int) (*Residue, error) {
	residueType, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue type").WithErr(err)
	}
	if residueType > 2 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown residue type")
	}

	rs := &Residue{ID: id, Type: int(residueType)}

	begin, err := r.ReadUnsigned(24)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue begin").WithErr(err)
	}
	end, err := r.ReadUnsigned(24)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue end").WithErr(err)
	}
	partitionSize, err := r.ReadUnsigned(24)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue partition size").WithErr(err)
	}
	classifications, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue classifications").WithErr(err)
	}
	classbook, err := r.ReadUnsigned(8)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue classbook").WithErr(err)
	}

	rs.Begin = int(begin)
	rs.End = int(end)
	rs.PartitionSize = int(partitionSize) + 1
	rs.Classifications = int(classifications) + 1
	rs.Classbook = int(classbook)

	rs.Cascade = make([]int, rs.Classifications)
	for i := range rs.Cascade {
		low, err := r.ReadUnsigned(3)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read residue cascade low bits").WithErr(err)
		}
		hasHigh, err := r.ReadFlag()
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read residue cascade high flag").WithErr(err)
		}
		high := uint32(0)
		if hasHigh {
			high, err = r.ReadUnsigned(5)
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read residue cascade high bits").WithErr(err)
			}
		}
		rs.Cascade[i] = int(high*8 + low)
	}

	rs.Books = make([][8]int, rs.Classifications)
	for i := range rs.Books {
		for j := 0; j < 8; j++ {
			if rs.Cascade[i]&(1<<uint(j)) != 0 {
				b, err := r.ReadUnsigned(8)
				if err != nil {
					return nil, errs.New(errs.VorbisHeaderMalformed, "read residue vector book").WithErr(err)
				}
				rs.Books[i][j] = int(b)
			} else {
				rs.Books[i][j] = -1
			}
		}
	}

	return rs, nil
}

// Emit writes the residue header back verbatim.
func (rs *Residue) Emit(w *bitpack.Writer) {
	w.WriteUnsigned(uint32(rs.Type), 16)
	w.WriteUnsigned(uint32(rs.Begin), 24)
	w.WriteUnsigned(uint32(rs.End), 24)
	w.WriteUnsigned(uint32(rs.PartitionSize-1), 24)
	w.WriteUnsigned(uint32(rs.Classifications-1), 6)
	w.WriteUnsigned(uint32(rs.Classbook), 8)
	for _, c := range rs.Cascade {
		w.WriteUnsigned(uint32(c&0x7), 3)
		high := uint32(c) >> 3
		w.WriteFlag(high != 0)
		if high != 0 {
			w.WriteUnsigned(high, 5)
		}
	}
	for i := range rs.Books {
		for j := 0; j < 8; j++ {
			if rs.Cascade[i]&(1<<uint(j)) != 0 {
				w.WriteUnsigned(uint32(rs.Books[i][j]), 8)
			}
		}
	}
}

// Transcode walks the residue's classword/partition/cascade decode loop for
// the channels where doNotDecode[ch] is false, decoding each codebook
// symbol against ctx.Books and, on pass 2, emitting its new codeword. n is
// the window's half length (as used to bound begin/end for residue type
// 2's channel fold).
func (rs *Residue) Transcode(r *bitpack.Reader, ctx *TranscodeContext, doNotDecode []bool, n int) error {
	ch := len(doNotDecode)
	if rs.Type == 2 {
		decode := false
		for _, skip := range doNotDecode {
			if !skip {
				decode = true
				break
			}
		}
		if !decode {
			return nil
		}
		n *= ch
		ch = 1
		doNotDecode = []bool{false}
	}

	begin, end := rs.Begin, rs.End
	if begin > n {
		begin = n
	}
	if end > n {
		end = n
	}
	if end <= begin {
		return nil
	}

	classbook := bookByID(ctx.Books, rs.Classbook)
	if classbook == nil {
		return errs.New(errs.CodebookInvalid, "residue classbook id out of range")
	}
	classWordsPerCodeword := classbook.Dimensions
	nToRead := end - begin
	partitionsToRead := nToRead / rs.PartitionSize
	if partitionsToRead == 0 {
		return nil
	}

	cs := partitionsToRead + classWordsPerCodeword
	classifications := make([]int, ch*cs)

	for pass := 0; pass < 8; pass++ {
		partitionCount := 0
		for partitionCount < partitionsToRead {
			if pass == 0 {
				for j := 0; j < ch; j++ {
					if doNotDecode[j] {
						continue
					}
					entry, err := ctx.decodeAndEmit(r, rs.Classbook)
					if err != nil {
						return err
					}
					temp := entry
					for i := classWordsPerCodeword; i > 0; i-- {
						classifications[j*cs+(i-1)+partitionCount] = temp % rs.Classifications
						temp /= rs.Classifications
					}
				}
			}
			for classword := 0; classword < classWordsPerCodeword && partitionCount < partitionsToRead; classword++ {
				for j := 0; j < ch; j++ {
					if doNotDecode[j] {
						continue
					}
					vqclass := classifications[j*cs+partitionCount]
					vqbook := rs.Books[vqclass][pass]
					if vqbook < 0 {
						continue
					}
					book := bookByID(ctx.Books, vqbook)
					if book == nil {
						return errs.New(errs.CodebookInvalid, "residue vector book id out of range")
					}
					vectors := rs.PartitionSize / book.Dimensions
					for i := 0; i < vectors; i++ {
						if _, err := ctx.decodeAndEmit(r, vqbook); err != nil {
							return err
						}
					}
				}
				partitionCount++
			}
		}
	}
	return nil
}
