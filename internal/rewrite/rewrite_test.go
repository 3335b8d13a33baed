package rewrite

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/vorbis"
)

func TestRewriteAppliesVendorAndFieldActions(t *testing.T) {
	stream := &vorbis.Stream{
		Identification: &vorbis.Identification{
			Channels: 1, SampleRate: 44100, Blocksize0Exp: 8, Blocksize1Exp: 11,
		},
		Comment: &vorbis.Comment{Vendor: "old encoder", Fields: []string{"TITLE=x"}},
		Setup:   &vorbis.Setup{Codebooks: []*vorbis.Codebook{}, Floors: []*vorbis.Floor1{}, Residues: []*vorbis.Residue{}, Mappings: []*vorbis.Mapping{}, Modes: []*vorbis.Mode{}},
	}

	headers := Rewrite(stream, nil, Options{VendorAction: vorbis.VendorReplace, FieldsAction: vorbis.FieldsDelete})

	id, err := vorbis.ReadIdentification(headers.Identification)
	if err != nil {
		t.Fatalf("ReadIdentification failed: %v", err)
	}
	if id.Channels != 1 || id.SampleRate != 44100 {
		t.Errorf("identification round trip mismatch: %+v", id)
	}

	comment, err := vorbis.ReadComment(headers.Comment)
	if err != nil {
		t.Fatalf("ReadComment failed: %v", err)
	}
	if comment.Vendor != ToolVendor {
		t.Errorf("vendor = %q, want %q", comment.Vendor, ToolVendor)
	}
	if len(comment.Fields) != 0 {
		t.Errorf("fields = %v, want none (FieldsDelete)", comment.Fields)
	}
}
