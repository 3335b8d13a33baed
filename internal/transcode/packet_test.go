package transcode

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/vorbis"
)

// buildMinimalStream constructs a one-channel, one-mode, one-submap stream
// by hand (bypassing header parsing) small enough to walk a single audio
// packet end to end: one codebook shared as both the residue's classbook
// and its sole cascade-pass vector book, a flat (no-partition) floor, and a
// type-0 residue with 4 one-sample partitions.
func buildMinimalStream() *vorbis.Stream {
	cb := &vorbis.Codebook{
		Entries:    4,
		Dimensions: 1,
		Lengths:    []int{1, 2, 3, 3},
		Usage:      make([]uint64, 4),
	}
	if err := cb.RebuildTree(cb.Lengths); err != nil {
		panic(err)
	}

	floor := &vorbis.Floor1{
		Partitions: 0,
		XList:      []int{0, 1},
	}

	residue := &vorbis.Residue{
		Type:            0,
		Begin:           0,
		End:             4,
		PartitionSize:   1,
		Classifications: 1,
		Classbook:       0,
		Cascade:         []int{1},
		Books:           [][8]int{{0, -1, -1, -1, -1, -1, -1, -1}},
	}

	mapping := &vorbis.Mapping{
		Submaps:       1,
		MuxForChannel: []int{0},
		SubmapFloor:   []int{0},
		SubmapResidue: []int{0},
	}

	mode := &vorbis.Mode{BlockFlag: false, Mapping: 0}

	return &vorbis.Stream{
		Serial: 1,
		Identification: &vorbis.Identification{
			Channels:      1,
			Blocksize0Exp: 3,
			Blocksize1Exp: 3,
		},
		Setup: &vorbis.Setup{
			Codebooks: []*vorbis.Codebook{cb},
			Floors:    []*vorbis.Floor1{floor},
			Residues:  []*vorbis.Residue{residue},
			Mappings:  []*vorbis.Mapping{mapping},
			Modes:     []*vorbis.Mode{mode},
		},
	}
}

// buildTestPacket hand-encodes the audio packet buildMinimalStream's layout
// expects: a zero-width mode number, a set floor nonzero flag, and 8
// codebook reads (4 partitions x classbook-then-vqbook) all selecting entry
// 0 (codeword "0").
func buildTestPacket() []byte {
	w := bitpack.NewWriter()
	w.WriteFlag(true) // floor nonzero
	for i := 0; i < 8; i++ {
		w.WriteFlag(false) // codebook entry 0, length 1
	}
	return w.Bytes()
}

func TestPacketPass1AccumulatesCodebookUsage(t *testing.T) {
	stream := buildMinimalStream()
	ctx := &vorbis.TranscodeContext{Books: stream.Setup.Codebooks}

	var long bool
	if _, err := Packet(buildTestPacket(), stream, ctx, nil, &long); err != nil {
		t.Fatalf("Packet failed: %v", err)
	}

	cb := stream.Setup.Codebooks[0]
	if cb.Usage[0] != 8 {
		t.Errorf("entry 0 usage = %d, want 8", cb.Usage[0])
	}
	for i := 1; i < len(cb.Usage); i++ {
		if cb.Usage[i] != 0 {
			t.Errorf("entry %d usage = %d, want 0", i, cb.Usage[i])
		}
	}
}

func TestPacketPass2ReemitsDecodableBytes(t *testing.T) {
	stream := buildMinimalStream()
	cb := stream.Setup.Codebooks[0]

	pass1 := &vorbis.TranscodeContext{Books: stream.Setup.Codebooks}
	var long bool
	if _, err := Packet(buildTestPacket(), stream, pass1, nil, &long); err != nil {
		t.Fatalf("pass 1 failed: %v", err)
	}

	codewords := cb.AssignCodewords(cb.Lengths)
	bw := bitpack.NewWriter()
	pass2 := &vorbis.TranscodeContext{
		Books: stream.Setup.Codebooks,
		New:   []*vorbis.Codewords{codewords},
		W:     bw,
	}
	if _, err := Packet(buildTestPacket(), stream, pass2, nil, &long); err != nil {
		t.Fatalf("pass 2 failed: %v", err)
	}

	// Re-decode the pass-2 output against a fresh usage counter: it must
	// walk the identical structure and land on entry 0 eight times again.
	freshCB := &vorbis.Codebook{
		Entries:    cb.Entries,
		Dimensions: cb.Dimensions,
		Lengths:    cb.Lengths,
		Usage:      make([]uint64, cb.Entries),
	}
	if err := freshCB.RebuildTree(freshCB.Lengths); err != nil {
		t.Fatalf("rebuild tree: %v", err)
	}
	stream2 := buildMinimalStream()
	stream2.Setup.Codebooks[0] = freshCB
	verify := &vorbis.TranscodeContext{Books: stream2.Setup.Codebooks}
	if _, err := Packet(bw.Bytes(), stream2, verify, nil, &long); err != nil {
		t.Fatalf("re-decoding pass 2 output failed: %v", err)
	}
	if freshCB.Usage[0] != 8 {
		t.Errorf("re-decoded entry 0 usage = %d, want 8", freshCB.Usage[0])
	}
}
