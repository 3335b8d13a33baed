package vorbis

import "testing"

func buildStreamForTest() *Stream {
	return &Stream{
		Serial: 7,
		Identification: &Identification{
			Channels: 1, SampleRate: 44100, Blocksize0Exp: 8, Blocksize1Exp: 11,
		},
		Setup: &Setup{
			Modes: []*Mode{
				{Mapping: 0},
				{Mapping: 1},
				{BlockFlag: true, Mapping: 0},
			},
		},
	}
}

func TestStreamParseHeadersRoundTrip(t *testing.T) {
	id := &Identification{Channels: 2, SampleRate: 48000, Blocksize0Exp: 8, Blocksize1Exp: 11}
	comment := &Comment{Vendor: "test encoder"}
	cb := &Codebook{Entries: 2, Dimensions: 1, Lengths: []int{1, 1}, Usage: make([]uint64, 2)}
	if err := cb.RebuildTree(cb.Lengths); err != nil {
		t.Fatalf("RebuildTree failed: %v", err)
	}
	setup := &Setup{
		Codebooks: []*Codebook{cb},
		Floors:    []*Floor1{buildFloorForTest()},
		Residues:  []*Residue{buildResidueForTest()},
		Mappings:  []*Mapping{{Submaps: 1, MuxForChannel: []int{0, 0}, SubmapFloor: []int{0}, SubmapResidue: []int{0}}},
		Modes:     []*Mode{{Mapping: 0}},
	}

	idData := id.Emit()
	commentData := comment.Emit("test encoder", VendorCopy, FieldsCopy)
	setupData := setup.Emit(id.Channels, nil)

	stream, err := ParseHeaders(99, idData, commentData, setupData)
	if err != nil {
		t.Fatalf("ParseHeaders failed: %v", err)
	}
	if stream.Serial != 99 {
		t.Errorf("Serial = %d, want 99", stream.Serial)
	}
	if stream.Identification.Channels != 2 || stream.Identification.SampleRate != 48000 {
		t.Errorf("identification mismatch: %+v", stream.Identification)
	}
	if stream.Comment.Vendor != "test encoder" {
		t.Errorf("comment vendor mismatch: %q", stream.Comment.Vendor)
	}
	if len(stream.Setup.Modes) != 1 {
		t.Errorf("Setup.Modes length = %d, want 1", len(stream.Setup.Modes))
	}
}

func TestStreamBlockSize(t *testing.T) {
	stream := buildStreamForTest()
	if got := stream.BlockSize(false); got != 256 {
		t.Errorf("short BlockSize = %d, want 256", got)
	}
	if got := stream.BlockSize(true); got != 2048 {
		t.Errorf("long BlockSize = %d, want 2048", got)
	}
}

func TestStreamModeByPacket(t *testing.T) {
	stream := buildStreamForTest()

	mode, err := stream.ModeByPacket(2)
	if err != nil {
		t.Fatalf("ModeByPacket failed: %v", err)
	}
	if !mode.BlockFlag {
		t.Error("expected mode 2 to be a long block")
	}

	if _, err := stream.ModeByPacket(3); err == nil {
		t.Error("expected an out-of-range mode number to be rejected")
	}
}

func TestStreamModeNumberWidth(t *testing.T) {
	stream := buildStreamForTest() // 3 modes -> ilog(2) = 2 bits
	if got := stream.ModeNumberWidth(); got != 2 {
		t.Errorf("ModeNumberWidth = %d, want 2", got)
	}
}
