package vorbis

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/bitpack"
)

func newTestCodebook(lengths []int) *Codebook {
	cb := &Codebook{
		Entries: len(lengths),
		Lengths: append([]int(nil), lengths...),
		Usage:   make([]uint64, len(lengths)),
	}
	if err := cb.buildTree(); err != nil {
		panic(err)
	}
	return cb
}

func TestCodebookDecodeRoundTrip(t *testing.T) {
	// A small canonical length set: entries 0..3 with lengths 1,2,3,3.
	cb := newTestCodebook([]int{1, 2, 3, 3})

	w := bitpack.NewWriter()
	for entry := 0; entry < cb.Entries; entry++ {
		cw := cb.AssignCodewords(nil)
		emitCodeword(w, cw.Codes[entry], cw.Lengths[entry])
	}

	r := bitpack.NewReader(w.Bytes())
	for entry := 0; entry < cb.Entries; entry++ {
		got, err := cb.Decode(r)
		if err != nil {
			t.Fatalf("Decode entry %d failed: %v", entry, err)
		}
		if got != entry {
			t.Errorf("decoded entry %d, want %d", got, entry)
		}
	}

	for entry, usage := range cb.Usage {
		if usage != 1 {
			t.Errorf("entry %d usage = %d, want 1", entry, usage)
		}
	}
}

func TestCodebookVerifyDecodeEquivalence(t *testing.T) {
	cb := newTestCodebook([]int{2, 2, 2, 2})
	if err := cb.VerifyDecodeEquivalence(cb.Lengths); err != nil {
		t.Fatalf("equivalence check failed on its own lengths: %v", err)
	}

	newLengths := []int{1, 2, 3, 3}
	if err := cb.VerifyDecodeEquivalence(newLengths); err != nil {
		t.Fatalf("equivalence check failed on a valid new assignment: %v", err)
	}
}

func TestCodebookValidateRejectsKraftViolation(t *testing.T) {
	// Three length-1 codes can't coexist. Built without newTestCodebook,
	// whose decode-tree construction would already reject these lengths.
	cb := &Codebook{Entries: 3, Lengths: []int{1, 1, 1}, Usage: make([]uint64, 3)}
	if err := cb.Validate(nil); err == nil {
		t.Error("expected Kraft's inequality violation to be rejected")
	}
}

func TestCodebookValidateAcceptsExactKraftSum(t *testing.T) {
	cb := newTestCodebook([]int{1, 2, 3, 3})
	if err := cb.Validate(nil); err != nil {
		t.Errorf("exact Kraft sum should validate: %v", err)
	}
}

func TestCodebookSparseEntriesSkipDecodeButKeepIndices(t *testing.T) {
	lengths := []int{1, unusedLength, 2, 2}
	cb := newTestCodebook(lengths)

	order := canonicalOrder(cb.Lengths)
	if len(order) != 3 {
		t.Fatalf("canonicalOrder returned %d entries, want 3 (sparse gap skipped)", len(order))
	}
	for _, e := range order {
		if e == 1 {
			t.Error("sparse entry 1 should not appear in canonical order")
		}
	}
}

func TestAssignCodesAscendingWithinLength(t *testing.T) {
	lengths := []int{2, 2, 2, 2}
	order := canonicalOrder(lengths)
	codes := assignCodes(order, lengths)
	for i := 1; i < len(order); i++ {
		if codes[order[i]] != codes[order[i-1]]+1 {
			t.Errorf("codes not assigned in ascending sequence: %v", codes)
		}
	}
}
