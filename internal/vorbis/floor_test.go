package vorbis

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/bitpack"
)

func buildFloorForTest() *Floor1 {
	return &Floor1{
		Partitions:         1,
		PartitionClass:     []int{0},
		ClassDimensions:    []int{1},
		ClassSubclasses:    []int{0},
		ClassMasterbooks:   []int{-1},
		ClassSubclassBooks: [][]int{{0}},
		Multiplier:         1,
		XList:              []int{0, 256, 128},
	}
}

func TestFloorHeaderRoundTrip(t *testing.T) {
	fl := buildFloorForTest()

	w := bitpack.NewWriter()
	fl.Emit(w)

	r := bitpack.NewReader(w.Bytes())
	got, err := ReadFloor(r, 0)
	if err != nil {
		t.Fatalf("ReadFloor failed: %v", err)
	}
	if got.Partitions != fl.Partitions {
		t.Errorf("Partitions = %d, want %d", got.Partitions, fl.Partitions)
	}
	if got.Multiplier != fl.Multiplier {
		t.Errorf("Multiplier = %d, want %d", got.Multiplier, fl.Multiplier)
	}
	if len(got.XList) != len(fl.XList) {
		t.Fatalf("XList length = %d, want %d", len(got.XList), len(fl.XList))
	}
	for i := range fl.XList {
		if got.XList[i] != fl.XList[i] {
			t.Errorf("XList[%d] = %d, want %d", i, got.XList[i], fl.XList[i])
		}
	}
}

func TestFloorType0RejectedAtRead(t *testing.T) {
	w := bitpack.NewWriter()
	w.WriteUnsigned(0, 16)
	r := bitpack.NewReader(w.Bytes())
	if _, err := ReadFloor(r, 0); err == nil {
		t.Error("expected floor type 0 to be rejected")
	}
}

func TestFloorUnknownTypeRejected(t *testing.T) {
	w := bitpack.NewWriter()
	w.WriteUnsigned(2, 16)
	r := bitpack.NewReader(w.Bytes())
	if _, err := ReadFloor(r, 0); err == nil {
		t.Error("expected an unknown floor type to be rejected")
	}
}

func TestFloorTranscodeZeroFlagSkipsBookReads(t *testing.T) {
	fl := buildFloorForTest()

	w := bitpack.NewWriter()
	w.WriteFlag(false) // floor entirely unused this packet
	r := bitpack.NewReader(w.Bytes())

	ctx := &TranscodeContext{}
	nonZero, err := fl.Transcode(r, ctx)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if nonZero {
		t.Error("expected nonZero=false for a cleared floor flag")
	}
}

func TestFloorTranscodeNonZeroWalksClassAndSubclassBooks(t *testing.T) {
	fl := buildFloorForTest() // 1 class, 0 subclasses, subBook id 0

	cb := &Codebook{Entries: 4, Dimensions: 1, Lengths: []int{1, 2, 3, 3}, Usage: make([]uint64, 4)}
	if err := cb.RebuildTree(cb.Lengths); err != nil {
		t.Fatalf("RebuildTree failed: %v", err)
	}

	// XList[1] = 256, so Transcode computes rangeBits = 8 (1<<8 = 256).
	w := bitpack.NewWriter()
	w.WriteFlag(true)      // floor nonzero
	w.WriteUnsigned(5, 8)  // y0
	w.WriteUnsigned(5, 8)  // y1
	w.WriteFlag(false)     // class 0's sole dimension: codebook entry 0

	r := bitpack.NewReader(w.Bytes())
	ctx := &TranscodeContext{Books: []*Codebook{cb}}
	nonZero, err := fl.Transcode(r, ctx)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if !nonZero {
		t.Error("expected nonZero=true for a set floor flag")
	}
	if cb.Usage[0] != 1 {
		t.Errorf("subBook usage[0] = %d, want 1", cb.Usage[0])
	}
}
