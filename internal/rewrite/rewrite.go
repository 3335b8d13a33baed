// Package rewrite serializes the rewritten Vorbis headers for one logical
// stream: the identification header (blocksize/metadata fields verbatim),
// the comment header (vendor/field actions applied), and the setup header
// (new codebook codeword lengths substituted in).
package rewrite

import "github.com/optivorbis/optivorbis/internal/vorbis"

// ToolVendor is the vendor-string tag this rewriter stamps onto comment
// headers under VendorAppendTag/VendorAppendShortTag.
const ToolVendor = "optivorbis"

// Options mirrors the CLI's --vendor_string_action/--comment_fields_action
// flags for one remux invocation.
type Options struct {
	VendorAction vorbis.VendorAction
	FieldsAction vorbis.FieldsAction
}

// Headers holds the three re-emitted header packets, ready to hand to the
// Ogg writer in order.
type Headers struct {
	Identification []byte
	Comment        []byte
	Setup          []byte
}

// Rewrite emits the new header packets for stream. newLengths[i] is the
// optimized length vector for codebook i (nil entries fall back to the
// codebook's original lengths, e.g. for a codebook pass-1 never exercised).
func Rewrite(stream *vorbis.Stream, newLengths [][]int, opts Options) Headers {
	return Headers{
		Identification: stream.Identification.Emit(),
		Comment:        stream.Comment.Emit(ToolVendor, opts.VendorAction, opts.FieldsAction),
		Setup:          stream.Setup.Emit(stream.Identification.Channels, newLengths),
	}
}
