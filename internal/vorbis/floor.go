package vorbis

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

// floorType1MaxClasses is the maximum class count a floor 1 header permits
// per the Vorbis I spec (4 bits for each partition's class).
const floorType1MaxClasses = 16

// Floor1 is the in-memory model of a type-1 floor curve description. Floor
// type 0 is parsed only far enough to be rejected (VorbisUnsupported);
// this repo never decodes floor curves to amplitude values, since it never
// produces PCM, so only the bit layout needed to walk packet data is kept.
type Floor1 struct {
	ID int

	Partitions     int
	PartitionClass []int // per partition, which class

	ClassDimensions  []int // per class
	ClassSubclasses  []int // per class, log2 subclass count (0..)
	ClassMasterbooks []int // per class, codebook id; -1 when the class has no subclasses

	// ClassSubclassBooks[class][subclass] is a codebook id, or -1 for "no
	// book" (stored in the header as book+1, so 0 means none).
	ClassSubclassBooks [][]int

	Multiplier int
	XList      []int // X values per partition point, ascending order not guaranteed before sort
}

// ReadFloor parses one floor header entry. floorType 0 is rejected as soon
// as the type field is read, without parsing the rest of its header,
// matching the spec's explicit floor-0 unsupported policy.
func ReadFloor(r *bitpack.Reader, id int) (*Floor1, error) {
	floorType, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read floor type").WithErr(err)
	}
	if floorType == 0 {
		return nil, errs.New(errs.VorbisUnsupported, "floor type 0 is not supported")
	}
	if floorType != 1 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown floor type")
	}

	fl := &Floor1{ID: id}

	partitions, err := r.ReadUnsigned(5)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 partitions").WithErr(err)
	}
	fl.Partitions = int(partitions)
	fl.PartitionClass = make([]int, fl.Partitions)

	maxClass := -1
	for i := range fl.PartitionClass {
		c, err := r.ReadUnsigned(4)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 partition class").WithErr(err)
		}
		fl.PartitionClass[i] = int(c)
		if int(c) > maxClass {
			maxClass = int(c)
		}
	}
	if maxClass >= floorType1MaxClasses {
		return nil, errs.New(errs.VorbisHeaderMalformed, "floor1 class index out of range")
	}

	classCount := maxClass + 1
	fl.ClassDimensions = make([]int, classCount)
	fl.ClassSubclasses = make([]int, classCount)
	fl.ClassMasterbooks = make([]int, classCount)
	fl.ClassSubclassBooks = make([][]int, classCount)

	for c := 0; c < classCount; c++ {
		dim, err := r.ReadUnsigned(3)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 class dimension").WithErr(err)
		}
		fl.ClassDimensions[c] = int(dim) + 1

		subclasses, err := r.ReadUnsigned(2)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 class subclasses").WithErr(err)
		}
		fl.ClassSubclasses[c] = int(subclasses)

		if subclasses != 0 {
			masterbook, err := r.ReadUnsigned(8)
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 masterbook").WithErr(err)
			}
			fl.ClassMasterbooks[c] = int(masterbook)
		} else {
			fl.ClassMasterbooks[c] = -1
		}

		books := make([]int, 1<<uint(subclasses))
		for s := range books {
			b, err := r.ReadUnsigned(8)
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 subclass book").WithErr(err)
			}
			books[s] = int(b) - 1 // stored as book+1; 0 means "no book"
		}
		fl.ClassSubclassBooks[c] = books
	}

	mult, err := r.ReadUnsigned(2)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 multiplier").WithErr(err)
	}
	fl.Multiplier = int(mult) + 1

	rangeBits, err := r.ReadUnsigned(4)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 rangebits").WithErr(err)
	}

	fl.XList = append(fl.XList, 0, 1<<uint(rangeBits))
	for _, class := range fl.PartitionClass {
		dim := fl.ClassDimensions[class]
		for i := 0; i < dim; i++ {
			x, err := r.ReadUnsigned(uint(rangeBits))
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read floor1 x value").WithErr(err)
			}
			fl.XList = append(fl.XList, int(x))
		}
	}

	return fl, nil
}

// Emit writes the floor header back verbatim: floor curve shape is
// structural metadata this repo never alters.
func (fl *Floor1) Emit(w *bitpack.Writer) {
	w.WriteUnsigned(1, 16)
	w.WriteUnsigned(uint32(fl.Partitions), 5)
	for _, c := range fl.PartitionClass {
		w.WriteUnsigned(uint32(c), 4)
	}
	for c := range fl.ClassDimensions {
		w.WriteUnsigned(uint32(fl.ClassDimensions[c]-1), 3)
		w.WriteUnsigned(uint32(fl.ClassSubclasses[c]), 2)
		if fl.ClassSubclasses[c] != 0 {
			w.WriteUnsigned(uint32(fl.ClassMasterbooks[c]), 8)
		}
		for _, b := range fl.ClassSubclassBooks[c] {
			w.WriteUnsigned(uint32(b+1), 8)
		}
	}
	w.WriteUnsigned(uint32(fl.Multiplier-1), 2)

	rangeBits := 0
	for (1 << uint(rangeBits)) < fl.XList[1] {
		rangeBits++
	}
	w.WriteUnsigned(uint32(rangeBits), 4)
	idx := 2
	for _, class := range fl.PartitionClass {
		dim := fl.ClassDimensions[class]
		for i := 0; i < dim; i++ {
			w.WriteUnsigned(uint32(fl.XList[idx]), uint(rangeBits))
			idx++
		}
	}
}

// Transcode walks one channel's floor curve data within an audio packet,
// decoding each codebook symbol against ctx.Books (accumulating usage on
// pass 1 via Codebook.Decode) and, on pass 2, emitting the new codeword
// for each. Raw (non-codebook) bits pass through verbatim. It never
// reconstructs the amplitude curve itself. The returned bool is the
// channel's nonzero flag: callers use it to build the residue's
// doNotDecode mask, matching the Vorbis I coupling rule that a channel
// whose floor was entirely unused this packet contributes no residue.
func (fl *Floor1) Transcode(r *bitpack.Reader, ctx *TranscodeContext) (bool, error) {
	nonZero, err := ctx.passFlag(r)
	if err != nil {
		return false, errs.New(errs.BitpackEOF, "read floor1 nonzero flag").WithErr(err)
	}
	if !nonZero {
		return false, nil
	}

	rangeBits := 0
	for (1 << uint(rangeBits)) < fl.XList[1] {
		rangeBits++
	}

	if _, err := ctx.passUnsigned(r, uint(rangeBits)); err != nil {
		return false, errs.New(errs.BitpackEOF, "read floor1 y0").WithErr(err)
	}
	if _, err := ctx.passUnsigned(r, uint(rangeBits)); err != nil {
		return false, errs.New(errs.BitpackEOF, "read floor1 y1").WithErr(err)
	}

	for _, class := range fl.PartitionClass {
		masterbookID := fl.ClassMasterbooks[class]
		subclasses := fl.ClassSubclasses[class]
		var bookIdx int
		if subclasses != 0 {
			entry, err := ctx.decodeAndEmit(r, masterbookID)
			if err != nil {
				return false, err
			}
			bookIdx = entry
		}
		subBook := fl.ClassSubclassBooks[class][bookIdx]
		if subBook < 0 {
			continue
		}
		dim := fl.ClassDimensions[class]
		for i := 0; i < dim; i++ {
			if _, err := ctx.decodeAndEmit(r, subBook); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func bookByID(books []*Codebook, id int) *Codebook {
	if id < 0 || id >= len(books) {
		return nil
	}
	return books[id]
}
