package vorbis

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/bitpack"
)

func buildResidueForTest() *Residue {
	return &Residue{
		Type:            0,
		Begin:           0,
		End:             4,
		PartitionSize:   1,
		Classifications: 1,
		Classbook:       0,
		Cascade:         []int{1},
		Books:           [][8]int{{0, -1, -1, -1, -1, -1, -1, -1}},
	}
}

func TestResidueHeaderRoundTrip(t *testing.T) {
	rs := buildResidueForTest()

	w := bitpack.NewWriter()
	rs.Emit(w)

	r := bitpack.NewReader(w.Bytes())
	got, err := ReadResidue(r, 0)
	if err != nil {
		t.Fatalf("ReadResidue failed: %v", err)
	}
	if got.Type != rs.Type || got.Begin != rs.Begin || got.End != rs.End {
		t.Errorf("round trip mismatch: got %+v, want %+v", *got, *rs)
	}
	if got.PartitionSize != rs.PartitionSize || got.Classifications != rs.Classifications {
		t.Errorf("round trip mismatch: got %+v, want %+v", *got, *rs)
	}
	if got.Cascade[0] != rs.Cascade[0] || got.Books[0] != rs.Books[0] {
		t.Errorf("cascade/books round trip mismatch: got %+v, want %+v", *got, *rs)
	}
}

func TestResidueUnknownTypeRejected(t *testing.T) {
	w := bitpack.NewWriter()
	w.WriteUnsigned(3, 16)
	r := bitpack.NewReader(w.Bytes())
	if _, err := ReadResidue(r, 0); err == nil {
		t.Error("expected an unknown residue type to be rejected")
	}
}

func TestResidueTranscodeWalksClassAndVectorBooks(t *testing.T) {
	rs := buildResidueForTest()
	cb := &Codebook{Entries: 4, Dimensions: 1, Lengths: []int{1, 2, 3, 3}, Usage: make([]uint64, 4)}
	if err := cb.RebuildTree(cb.Lengths); err != nil {
		t.Fatalf("RebuildTree failed: %v", err)
	}

	// 4 one-sample partitions: per partition, one classbook read selecting
	// entry 0 (class 0) then one vector-book read, all entry 0.
	w := bitpack.NewWriter()
	for i := 0; i < 8; i++ {
		w.WriteFlag(false)
	}
	r := bitpack.NewReader(w.Bytes())

	ctx := &TranscodeContext{Books: []*Codebook{cb}}
	doNotDecode := []bool{false}
	if err := rs.Transcode(r, ctx, doNotDecode, 4); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if cb.Usage[0] != 8 {
		t.Errorf("usage[0] = %d, want 8 (4 classbook reads + 4 vector reads, classWordsPerCodeword=1)", cb.Usage[0])
	}
}

func TestResidueTranscodeSkipsChannelsMarkedDoNotDecode(t *testing.T) {
	rs := buildResidueForTest()
	cb := &Codebook{Entries: 4, Dimensions: 1, Lengths: []int{1, 2, 3, 3}, Usage: make([]uint64, 4)}
	if err := cb.RebuildTree(cb.Lengths); err != nil {
		t.Fatalf("RebuildTree failed: %v", err)
	}

	r := bitpack.NewReader(nil)
	ctx := &TranscodeContext{Books: []*Codebook{cb}}
	if err := rs.Transcode(r, ctx, []bool{true}, 4); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if cb.Usage[0] != 0 {
		t.Errorf("usage[0] = %d, want 0 when the sole channel is marked doNotDecode", cb.Usage[0])
	}
}
