package vorbis

import (
	"bytes"

	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

const (
	packetTypeIdentification = 1
	packetTypeComment        = 3
	packetTypeSetup          = 5
)

var vorbisMagic = []byte("vorbis")

// Identification is the parsed identification header (packet type 1). The
// remuxer re-emits it with every field as parsed.
type Identification struct {
	Version        uint32
	Channels       int
	SampleRate     uint32
	BitrateMaximum int32
	BitrateNominal int32
	BitrateMinimum int32
	Blocksize0Exp  int
	Blocksize1Exp  int
}

// ReadIdentification parses packet type 1.
func ReadIdentification(data []byte) (*Identification, error) {
	r := bitpack.NewReader(data)
	if err := expectHeaderPreamble(r, packetTypeIdentification); err != nil {
		return nil, err
	}

	version, err := r.ReadUnsigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read identification version").WithErr(err)
	}
	if version != 0 {
		return nil, errs.New(errs.VorbisUnsupported, "unsupported identification header version")
	}
	channels, err := r.ReadUnsigned(8)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read channel count").WithErr(err)
	}
	if channels == 0 {
		return nil, errs.New(errs.VorbisHeaderMalformed, "zero channel count")
	}
	sampleRate, err := r.ReadUnsigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read sample rate").WithErr(err)
	}
	if sampleRate == 0 {
		return nil, errs.New(errs.VorbisHeaderMalformed, "zero sample rate")
	}
	bitrateMax, err := r.ReadSigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read maximum bitrate").WithErr(err)
	}
	bitrateNom, err := r.ReadSigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read nominal bitrate").WithErr(err)
	}
	bitrateMin, err := r.ReadSigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read minimum bitrate").WithErr(err)
	}
	bs0, err := r.ReadUnsigned(4)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read blocksize 0").WithErr(err)
	}
	bs1, err := r.ReadUnsigned(4)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read blocksize 1").WithErr(err)
	}
	if bs0 < 6 || bs0 > 13 || bs1 < 6 || bs1 > 13 || bs0 > bs1 {
		return nil, errs.New(errs.VorbisHeaderMalformed, "blocksize exponents out of range or misordered")
	}
	framing, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read identification framing bit").WithErr(err)
	}
	if !framing {
		return nil, errs.New(errs.VorbisHeaderMalformed, "identification framing bit clear")
	}

	return &Identification{
		Version:        version,
		Channels:       int(channels),
		SampleRate:     sampleRate,
		BitrateMaximum: bitrateMax,
		BitrateNominal: bitrateNom,
		BitrateMinimum: bitrateMin,
		Blocksize0Exp:  int(bs0),
		Blocksize1Exp:  int(bs1),
	}, nil
}

// Emit writes the identification header packet from the struct fields,
// with the framing bit always set.
func (id *Identification) Emit() []byte {
	w := bitpack.NewWriter()
	w.WriteUnsigned(packetTypeIdentification, 8)
	writeMagic(w)
	w.WriteUnsigned(id.Version, 32)
	w.WriteUnsigned(uint32(id.Channels), 8)
	w.WriteUnsigned(id.SampleRate, 32)
	w.WriteSigned(id.BitrateMaximum, 32)
	w.WriteSigned(id.BitrateNominal, 32)
	w.WriteSigned(id.BitrateMinimum, 32)
	w.WriteUnsigned(uint32(id.Blocksize0Exp), 4)
	w.WriteUnsigned(uint32(id.Blocksize1Exp), 4)
	w.WriteFlag(true)
	return w.Bytes()
}

// VendorAction controls how Comment.Emit treats the vendor string, per
// the --vendor_string_action CLI option.
type VendorAction int

const (
	VendorCopy VendorAction = iota
	VendorReplace
	VendorAppendTag
	VendorAppendShortTag
	VendorEmpty
)

// FieldsAction controls whether user comment fields survive the rewrite.
type FieldsAction int

const (
	FieldsCopy FieldsAction = iota
	FieldsDelete
)

// Comment is the parsed comment header (packet type 3).
type Comment struct {
	Vendor string
	Fields []string
}

// ReadComment parses packet type 3.
func ReadComment(data []byte) (*Comment, error) {
	r := bitpack.NewReader(data)
	if err := expectHeaderPreamble(r, packetTypeComment); err != nil {
		return nil, err
	}

	vendor, err := readLengthPrefixedString(r)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read vendor string").WithErr(err)
	}

	count, err := r.ReadUnsigned(32)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read comment field count").WithErr(err)
	}

	fields := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := readLengthPrefixedString(r)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read comment field").WithErr(err)
		}
		fields = append(fields, s)
	}

	framing, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read comment framing bit").WithErr(err)
	}
	if !framing {
		return nil, errs.New(errs.VorbisHeaderMalformed, "comment framing bit clear")
	}

	return &Comment{Vendor: vendor, Fields: fields}, nil
}

// appliedVendorString returns the vendor string to emit under the given
// action, where toolVendor names this rewriter for the Append* actions.
func appliedVendorString(original, toolVendor string, action VendorAction) string {
	switch action {
	case VendorReplace:
		return toolVendor
	case VendorAppendTag:
		return original + " + " + toolVendor
	case VendorAppendShortTag:
		return original + " [" + toolVendor + "]"
	case VendorEmpty:
		return ""
	default: // VendorCopy
		return original
	}
}

// Emit writes the comment header applying vendorAction/fieldsAction.
func (c *Comment) Emit(toolVendor string, vendorAction VendorAction, fieldsAction FieldsAction) []byte {
	w := bitpack.NewWriter()
	w.WriteUnsigned(packetTypeComment, 8)
	writeMagic(w)

	writeLengthPrefixedString(w, appliedVendorString(c.Vendor, toolVendor, vendorAction))

	fields := c.Fields
	if fieldsAction == FieldsDelete {
		fields = nil
	}
	w.WriteUnsigned(uint32(len(fields)), 32)
	for _, f := range fields {
		writeLengthPrefixedString(w, f)
	}
	w.WriteFlag(true)
	return w.Bytes()
}

// Setup is the parsed setup header (packet type 5): codebooks, floors,
// residues, mappings and modes, all retained and individually re-emittable.
type Setup struct {
	Codebooks []*Codebook
	Floors    []*Floor1
	Residues  []*Residue
	Mappings  []*Mapping
	Modes     []*Mode
}

// ReadSetup parses packet type 5. channels comes from the already-parsed
// identification header, since mapping parsing needs it.
func ReadSetup(data []byte, channels int) (*Setup, error) {
	r := bitpack.NewReader(data)
	if err := expectHeaderPreamble(r, packetTypeSetup); err != nil {
		return nil, err
	}

	s := &Setup{}

	codebookCount, err := r.ReadUnsigned(8)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read codebook count").WithErr(err)
	}
	n := int(codebookCount) + 1
	s.Codebooks = make([]*Codebook, n)
	for i := 0; i < n; i++ {
		cb, err := ReadCodebook(r, i, int64(r.BitsRemaining()))
		if err != nil {
			return nil, err
		}
		s.Codebooks[i] = cb
	}

	timeCount, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read time domain transform count").WithErr(err)
	}
	for i := 0; i <= int(timeCount); i++ {
		v, err := r.ReadUnsigned(16)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read time domain transform type").WithErr(err)
		}
		if v != 0 {
			return nil, errs.New(errs.VorbisUnsupported, "nonzero time domain transform type")
		}
	}

	floorCount, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read floor count").WithErr(err)
	}
	s.Floors = make([]*Floor1, int(floorCount)+1)
	for i := range s.Floors {
		fl, err := ReadFloor(r, i)
		if err != nil {
			return nil, err
		}
		s.Floors[i] = fl
	}

	residueCount, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read residue count").WithErr(err)
	}
	s.Residues = make([]*Residue, int(residueCount)+1)
	for i := range s.Residues {
		rs, err := ReadResidue(r, i)
		if err != nil {
			return nil, err
		}
		s.Residues[i] = rs
	}

	mappingCount, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping count").WithErr(err)
	}
	s.Mappings = make([]*Mapping, int(mappingCount)+1)
	for i := range s.Mappings {
		m, err := ReadMapping(r, i, channels)
		if err != nil {
			return nil, err
		}
		s.Mappings[i] = m
	}

	modeCount, err := r.ReadUnsigned(6)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mode count").WithErr(err)
	}
	s.Modes = make([]*Mode, int(modeCount)+1)
	for i := range s.Modes {
		md, err := ReadMode(r, i)
		if err != nil {
			return nil, err
		}
		s.Modes[i] = md
	}

	framing, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read setup framing bit").WithErr(err)
	}
	if !framing {
		return nil, errs.New(errs.VorbisHeaderMalformed, "setup framing bit clear")
	}

	return s, nil
}

// Emit writes the setup header, substituting newLengths[i] (if non-nil)
// for each codebook's Huffman lengths in place of the original, verbatim
// otherwise.
func (s *Setup) Emit(channels int, newLengths [][]int) []byte {
	w := bitpack.NewWriter()
	w.WriteUnsigned(packetTypeSetup, 8)
	writeMagic(w)

	w.WriteUnsigned(uint32(len(s.Codebooks)-1), 8)
	for i, cb := range s.Codebooks {
		var nl []int
		if newLengths != nil {
			nl = newLengths[i]
		}
		cb.Emit(w, nl)
	}

	w.WriteUnsigned(0, 6) // one time-domain transform slot
	w.WriteUnsigned(0, 16)

	w.WriteUnsigned(uint32(len(s.Floors)-1), 6)
	for _, fl := range s.Floors {
		fl.Emit(w)
	}

	w.WriteUnsigned(uint32(len(s.Residues)-1), 6)
	for _, rs := range s.Residues {
		rs.Emit(w)
	}

	w.WriteUnsigned(uint32(len(s.Mappings)-1), 6)
	for _, m := range s.Mappings {
		m.Emit(w, channels)
	}

	w.WriteUnsigned(uint32(len(s.Modes)-1), 6)
	for _, md := range s.Modes {
		md.Emit(w)
	}

	w.WriteFlag(true)
	return w.Bytes()
}

func expectHeaderPreamble(r *bitpack.Reader, wantType uint32) error {
	t, err := r.ReadUnsigned(8)
	if err != nil {
		return errs.New(errs.VorbisHeaderMalformed, "read header packet type").WithErr(err)
	}
	if t != wantType {
		return errs.New(errs.VorbisHeaderMalformed, "unexpected header packet type")
	}
	magic := make([]byte, 6)
	for i := range magic {
		b, err := r.ReadUnsigned(8)
		if err != nil {
			return errs.New(errs.VorbisHeaderMalformed, "read header magic").WithErr(err)
		}
		magic[i] = byte(b)
	}
	if !bytes.Equal(magic, vorbisMagic) {
		return errs.New(errs.VorbisHeaderMalformed, "vorbis magic mismatch")
	}
	return nil
}

func writeMagic(w *bitpack.Writer) {
	for _, b := range vorbisMagic {
		w.WriteUnsigned(uint32(b), 8)
	}
}

func readLengthPrefixedString(r *bitpack.Reader) (string, error) {
	n, err := r.ReadUnsigned(32)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	for i := range b {
		v, err := r.ReadUnsigned(8)
		if err != nil {
			return "", err
		}
		b[i] = byte(v)
	}
	return string(b), nil
}

func writeLengthPrefixedString(w *bitpack.Writer, s string) {
	w.WriteUnsigned(uint32(len(s)), 32)
	for i := 0; i < len(s); i++ {
		w.WriteUnsigned(uint32(s[i]), 8)
	}
}
