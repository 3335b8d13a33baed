package vorbis

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

// codebookSyncPattern is the 24-bit codebook sync pattern 0x42,0x43,0x56
// ('B','C','V') read LSB-first as a single 24-bit value.
const codebookSyncPattern = 0x564342

// unusedLength marks an entry with no codeword (sparse codebooks only).
const unusedLength = -1

// Codebook is the in-memory model of one Vorbis setup-header codebook: its
// entry lengths (for Huffman decode/encode) and, verbatim, its VQ lookup
// table bits (which this repo never interprets numerically, since it never
// produces PCM, but must reproduce byte-for-byte on re-emission).
type Codebook struct {
	ID         int
	Dimensions int
	Entries    int

	// Lengths holds each entry's codeword length in bits, or unusedLength
	// for an entry absent from a sparse codebook.
	Lengths []int

	// Ordered/Sparse record which header encoding was used; the decoded
	// model is identical either way. Emit does not consult them: it always
	// writes the unordered form, setting the sparse flag exactly when some
	// entry is unused.
	Ordered bool
	Sparse  bool

	LookupType int

	// Verbatim lookup-table fields (lookup types 1/2), preserved but never
	// interpreted: this repo reads and writes Huffman-coded symbol indices
	// only, never the quantized vector values they address.
	MinimumValue  uint32 // packed float32
	DeltaValue    uint32 // packed float32
	ValueBits     int
	SequenceFlag  bool
	Multiplicands []uint32

	tree *codebookNode

	// Usage is the pass-1 accumulated count for each entry, parallel to
	// Lengths. Indexed by entry.
	Usage []uint64
}

type codebookNode struct {
	leaf        bool
	entry       int
	left, right *codebookNode
}

// ReadCodebook parses one codebook from the setup header bitstream.
func ReadCodebook(r *bitpack.Reader, id int, offset int64) (*Codebook, error) {
	sync, err := r.ReadUnsigned(24)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook sync").WithOffset(offset).WithErr(err)
	}
	if sync != codebookSyncPattern {
		return nil, errs.New(errs.VorbisHeaderMalformed, "codebook sync mismatch").WithOffset(offset)
	}

	dims, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook dimensions").WithErr(err)
	}
	entries, err := r.ReadUnsigned(24)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook entry count").WithErr(err)
	}
	if entries > 1<<31 {
		return nil, errs.New(errs.VorbisUnsupported, "codebook too large for a 32-bit tree")
	}

	cb := &Codebook{
		ID:         id,
		Dimensions: int(dims),
		Entries:    int(entries),
		Lengths:    make([]int, entries),
	}

	ordered, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook ordered flag").WithErr(err)
	}
	cb.Ordered = ordered

	if !ordered {
		sparse, err := r.ReadFlag()
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook sparse flag").WithErr(err)
		}
		cb.Sparse = sparse
		for i := range cb.Lengths {
			if sparse {
				used, err := r.ReadFlag()
				if err != nil {
					return nil, errs.New(errs.VorbisHeaderMalformed, "read sparse entry flag").WithErr(err)
				}
				if !used {
					cb.Lengths[i] = unusedLength
					continue
				}
			}
			length, err := r.ReadUnsigned(5)
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read entry length").WithErr(err)
			}
			cb.Lengths[i] = int(length) + 1
		}
	} else {
		currentLength, err := r.ReadUnsigned(5)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read ordered initial length").WithErr(err)
		}
		length := int(currentLength) + 1
		entryIdx := 0
		for entryIdx < cb.Entries {
			width := ilog(uint32(cb.Entries - entryIdx))
			number, err := r.ReadUnsigned(uint(width))
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read ordered run length").WithErr(err)
			}
			for i := 0; i < int(number) && entryIdx < cb.Entries; i++ {
				cb.Lengths[entryIdx] = length
				entryIdx++
			}
			length++
		}
	}

	if err := cb.buildTree(); err != nil {
		return nil, err
	}

	lookupType, err := r.ReadUnsigned(4)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook lookup type").WithErr(err)
	}
	if lookupType > 2 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown codebook lookup type")
	}
	cb.LookupType = int(lookupType)

	if cb.LookupType != 0 {
		minVal, err := r.ReadUnsigned(32)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook minimum value").WithErr(err)
		}
		delta, err := r.ReadUnsigned(32)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook delta value").WithErr(err)
		}
		valueBits, err := r.ReadUnsigned(4)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook value bits").WithErr(err)
		}
		seq, err := r.ReadFlag()
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook sequence flag").WithErr(err)
		}

		cb.MinimumValue = minVal
		cb.DeltaValue = delta
		cb.ValueBits = int(valueBits) + 1
		cb.SequenceFlag = seq

		var quantVals int
		if cb.LookupType == 1 {
			quantVals = lookup1Values(cb.Entries, cb.Dimensions)
		} else {
			quantVals = cb.Entries * cb.Dimensions
		}
		cb.Multiplicands = make([]uint32, quantVals)
		for i := range cb.Multiplicands {
			v, err := r.ReadUnsigned(uint(cb.ValueBits))
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook multiplicand").WithErr(err)
			}
			cb.Multiplicands[i] = v
		}
	}

	cb.Usage = make([]uint64, cb.Entries)
	return cb, nil
}

// ilog returns the position of the highest set bit plus one (Vorbis's
// ilog): ilog(0) = 0, ilog(1) = 1, ilog(2) = ilog(3) = 2, etc.
func ilog(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// lookup1Values returns the largest integer value such that
// value^dimensions <= entries, per the Vorbis I spec's VQ lookup table
// size formula for lookup type 1.
func lookup1Values(entries, dimensions int) int {
	value := 1
	for {
		p := 1
		overflow := false
		for i := 0; i < dimensions; i++ {
			p *= value + 1
			if p > entries {
				overflow = true
				break
			}
		}
		if overflow {
			return value
		}
		value++
	}
}

// canonicalOrder returns entry indices with a length in lengths, sorted by
// ascending length, ties broken by ascending entry index (spec.md §3's
// "lexicographic order of increasing length").
func canonicalOrder(lengths []int) []int {
	order := make([]int, 0, len(lengths))
	for i, l := range lengths {
		if l != unusedLength {
			order = append(order, i)
		}
	}
	// Stable insertion sort by length; ties keep ascending entry-index
	// order because order was built by ascending index.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && lengths[order[j-1]] > lengths[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	return order
}

// assignCodes walks order (as produced by canonicalOrder) assigning the
// canonical next-available codeword at each length, returning a slice
// indexed by entry (valid only at indices present in order).
func assignCodes(order []int, lengths []int) []uint32 {
	codes := make([]uint32, len(lengths))
	code := 0
	length := 1
	for _, entry := range order {
		l := lengths[entry]
		for length < l {
			code <<= 1
			length++
		}
		codes[entry] = uint32(code)
		code++
	}
	return codes
}

// AssignCodewords computes the canonical codeword for every entry under
// lengths (or cb.Lengths if nil), for use when emitting pass-2 audio
// packets under a newly optimized length assignment.
func (cb *Codebook) AssignCodewords(lengths []int) *Codewords {
	if lengths == nil {
		lengths = cb.Lengths
	}
	order := canonicalOrder(lengths)
	return &Codewords{Lengths: lengths, Codes: assignCodes(order, lengths)}
}

// buildTree assigns canonical Huffman codewords in order of increasing
// length and builds the binary decode tree used by Decode.
func (cb *Codebook) buildTree() error {
	order := canonicalOrder(cb.Lengths)
	codes := assignCodes(order, cb.Lengths)

	root := &codebookNode{}
	for _, entry := range order {
		if err := insertCodeword(root, int(codes[entry]), cb.Lengths[entry], entry); err != nil {
			return err
		}
	}
	cb.tree = root
	return nil
}

// RebuildTree replaces the decode tree with one built from newLengths,
// used by the post-optimization decode-equivalence check: re-parsing the
// new codebook must decode every entry index back to itself.
func (cb *Codebook) RebuildTree(newLengths []int) error {
	order := canonicalOrder(newLengths)
	codes := assignCodes(order, newLengths)

	root := &codebookNode{}
	for _, entry := range order {
		if err := insertCodeword(root, int(codes[entry]), newLengths[entry], entry); err != nil {
			return err
		}
	}
	cb.tree = root
	return nil
}

func insertCodeword(root *codebookNode, code, length, entry int) error {
	node := root
	for bit := length - 1; bit >= 0; bit-- {
		b := (code >> bit) & 1
		if node.leaf {
			return errs.New(errs.CodebookInvalid, "overlapping codeword")
		}
		if b == 0 {
			if node.left == nil {
				node.left = &codebookNode{}
			}
			node = node.left
		} else {
			if node.right == nil {
				node.right = &codebookNode{}
			}
			node = node.right
		}
	}
	if node.leaf || node.left != nil || node.right != nil {
		return errs.New(errs.CodebookInvalid, "overlapping codeword")
	}
	node.leaf = true
	node.entry = entry
	return nil
}

// Decode walks the Huffman tree bit by bit and returns the decoded entry
// index, incrementing that entry's usage counter.
func (cb *Codebook) Decode(r *bitpack.Reader) (int, error) {
	node := cb.tree
	if node == nil {
		return 0, errs.New(errs.CodebookInvalid, "decode from empty codebook")
	}
	for !node.leaf {
		bit, err := r.ReadFlag()
		if err != nil {
			return 0, errs.New(errs.BitpackEOF, "read codebook tree bit").WithErr(err)
		}
		if bit {
			node = node.right
		} else {
			node = node.left
		}
		if node == nil {
			return 0, errs.New(errs.CodebookInvalid, "codeword not in tree")
		}
	}
	cb.Usage[node.entry]++
	return node.entry, nil
}

// Emit writes this codebook's bits back onto w, using newLengths in place
// of Lengths if non-nil (the re-optimized pass-2 assignment). All
// non-Huffman fields (lookup type, minimum/delta, multiplicands) are
// written verbatim.
func (cb *Codebook) Emit(w *bitpack.Writer, newLengths []int) {
	w.WriteUnsigned(codebookSyncPattern, 24)
	w.WriteUnsigned(uint32(cb.Dimensions), 16)
	w.WriteUnsigned(uint32(cb.Entries), 24)

	lengths := cb.Lengths
	if newLengths != nil {
		lengths = newLengths
	}

	anyUnused := false
	for _, l := range lengths {
		if l == unusedLength {
			anyUnused = true
			break
		}
	}

	w.WriteFlag(false) // always emit unordered; simplest reliably-correct form
	w.WriteFlag(anyUnused)
	for _, l := range lengths {
		if anyUnused {
			used := l != unusedLength
			w.WriteFlag(used)
			if !used {
				continue
			}
		}
		w.WriteUnsigned(uint32(l-1), 5)
	}

	w.WriteUnsigned(uint32(cb.LookupType), 4)
	if cb.LookupType != 0 {
		w.WriteUnsigned(cb.MinimumValue, 32)
		w.WriteUnsigned(cb.DeltaValue, 32)
		w.WriteUnsigned(uint32(cb.ValueBits-1), 4)
		w.WriteFlag(cb.SequenceFlag)
		for _, m := range cb.Multiplicands {
			w.WriteUnsigned(m, uint(cb.ValueBits))
		}
	}
}

// VerifyDecodeEquivalence checks that re-parsing a codebook built with
// newLengths would decode every used entry back to itself. Canonical
// assignment plus insertCodeword's overlap detection makes this true by
// construction, but a pathological input (e.g. a newLengths vector that
// didn't come from AssignCodewords/canonicalOrder) could still violate it,
// so this re-derives the tree independently and confirms every mapping.
func (cb *Codebook) VerifyDecodeEquivalence(newLengths []int) error {
	order := canonicalOrder(newLengths)
	codes := assignCodes(order, newLengths)

	root := &codebookNode{}
	for _, entry := range order {
		if err := insertCodeword(root, int(codes[entry]), newLengths[entry], entry); err != nil {
			return err
		}
	}
	for _, entry := range order {
		node := root
		length := newLengths[entry]
		code := codes[entry]
		for bit := length - 1; bit >= 0; bit-- {
			if (code>>uint(bit))&1 == 0 {
				node = node.left
			} else {
				node = node.right
			}
			if node == nil {
				return errs.New(errs.CodebookInvalid, "decode-equivalence check: codeword not in tree")
			}
		}
		if !node.leaf || node.entry != entry {
			return errs.New(errs.CodebookInvalid, "decode-equivalence check failed for entry")
		}
	}
	return nil
}

// Validate checks Kraft's inequality for the current Lengths (or, if
// lengths is non-nil, for that candidate assignment instead).
func (cb *Codebook) Validate(lengths []int) error {
	if lengths == nil {
		lengths = cb.Lengths
	}
	// Sum of 2^-l as a fixed-point value scaled by 2^32 to avoid floating
	// point: each used entry of length l contributes 2^(32-l).
	var sum uint64
	for _, l := range lengths {
		if l == unusedLength {
			continue
		}
		if l < 1 || l > 32 {
			return errs.New(errs.CodebookInvalid, "entry length out of range")
		}
		sum += uint64(1) << uint(32-l)
	}
	if sum > uint64(1)<<32 {
		return errs.New(errs.CodebookInvalid, "Kraft's inequality violated")
	}
	return nil
}
