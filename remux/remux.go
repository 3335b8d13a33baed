package remux

import (
	"bytes"
	"io"

	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
	"github.com/optivorbis/optivorbis/internal/ogg"
	"github.com/optivorbis/optivorbis/internal/prng"
	"github.com/optivorbis/optivorbis/internal/rewrite"
	"github.com/optivorbis/optivorbis/internal/transcode"
	"github.com/optivorbis/optivorbis/internal/vorbis"
)

const (
	vorbisPacketTypeIdentification = 1
)

// streamBuffer accumulates every packet of one logical bitstream, since
// the two-pass algorithm needs to walk the audio packets twice.
type streamBuffer struct {
	serial   uint32
	isVorbis bool
	packets  [][]byte

	// granules[i] is the page-ending granule position recorded for
	// packets[i], or (0, false) if that packet didn't end a page.
	granules     []uint64
	hasGranule   []bool
	declaredEnd  uint64
	hasDeclared  bool
}

// Remux reads an Ogg container from r, rebuilds every Vorbis logical
// bitstream's codebooks, and writes the result to w.
func Remux(r io.Reader, w io.Writer, cfg Config) (Stats, error) {
	var stats Stats

	counting := &countingReader{r: r}
	oggReader := ogg.NewReader(counting)
	oggReader.RepairMode = cfg.RepairMode
	oggReader.Logger = cfg.Logger

	order := []uint32{}
	buffers := map[uint32]*streamBuffer{}

	for {
		pkt, err := oggReader.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, wrapOggReadError(err, counting.n)
		}

		buf, ok := buffers[pkt.Serial]
		if !ok {
			buf = &streamBuffer{serial: pkt.Serial}
			if pkt.BOS && len(pkt.Data) > 7 && pkt.Data[0] == vorbisPacketTypeIdentification && bytes.Equal(pkt.Data[1:7], []byte("vorbis")) {
				buf.isVorbis = true
			}
			buffers[pkt.Serial] = buf
			order = append(order, pkt.Serial)
		}

		buf.packets = append(buf.packets, pkt.Data)
		buf.granules = append(buf.granules, pkt.GranulePos)
		buf.hasGranule = append(buf.hasGranule, pkt.HasGranulePos)
		if pkt.HasGranulePos {
			buf.declaredEnd = pkt.GranulePos
			buf.hasDeclared = true
		}
	}

	var vorbisSerials []uint32
	for _, serial := range order {
		if buffers[serial].isVorbis {
			vorbisSerials = append(vorbisSerials, serial)
		} else {
			stats.DroppedStreams++
		}
	}

	if len(vorbisSerials) == 0 {
		if cfg.ErrorOnNoVorbisStreams {
			return stats, errs.New(errs.NoVorbisStreams, "remux")
		}
		return stats, nil
	}

	out := &countingWriter{w: w}
	ow := ogg.NewWriter(out)
	rng := cfg.Rand
	if rng == nil && cfg.RandomizeStreamSerials {
		rng = prng.New()
	}

	for _, serial := range vorbisSerials {
		buf := buffers[serial]
		outSerial := serial
		if cfg.RandomizeStreamSerials {
			outSerial = rng.Uint32()
		} else {
			outSerial = serial + cfg.FirstStreamSerialOffset
		}

		if err := transcodeStream(buf, outSerial, ow, cfg); err != nil {
			stats.StreamErrors = append(stats.StreamErrors, err)
			if cfg.Logger != nil {
				cfg.Logger.WithError(err).WithField("serial", serial).Warn("dropping Vorbis stream")
			}
			continue
		}
		stats.VorbisStreams++
	}

	stats.OutputBytes = out.n
	stats.InputBytes = counting.n
	return stats, nil
}

func transcodeStream(buf *streamBuffer, outSerial uint32, ow *ogg.Writer, cfg Config) error {
	if len(buf.packets) < 3 {
		return errs.New(errs.VorbisHeaderMalformed, "transcode stream").WithSerial(buf.serial)
	}

	stream, err := vorbis.ParseHeaders(buf.serial, buf.packets[0], buf.packets[1], buf.packets[2])
	if err != nil {
		return err
	}

	audioPackets := buf.packets[3:]

	// Pass 1: decode-only, accumulating codebook usage counts.
	ctx1 := &vorbis.TranscodeContext{Books: stream.Setup.Codebooks}
	var prevLong *bool
	for i, data := range audioPackets {
		var long bool
		if _, err := transcode.Packet(data, stream, ctx1, prevLong, &long); err != nil {
			return errs.New(errs.VorbisHeaderMalformed, "pass 1 decode").WithSerial(buf.serial).WithPacket(int64(i)).WithErr(err)
		}
		prevLong = &long
	}

	// Compute new length-limited codeword assignments per codebook.
	newLengths := make([][]int, len(stream.Setup.Codebooks))
	for i, cb := range stream.Setup.Codebooks {
		used := make([]bool, cb.Entries)
		for e, l := range cb.Lengths {
			used[e] = l != -1
		}
		lengths, err := transcode.OptimalLengths(cb.Usage, used)
		if err != nil {
			return errs.New(errs.OptimizationInfeasible, "optimize codebook").WithSerial(buf.serial).WithErr(err)
		}
		if err := cb.Validate(lengths); err != nil {
			return err
		}
		if err := cb.VerifyDecodeEquivalence(lengths); err != nil {
			return err
		}
		newLengths[i] = lengths
	}

	headers := rewrite.Rewrite(stream, newLengths, rewrite.Options{VendorAction: cfg.VendorAction, FieldsAction: cfg.FieldsAction})

	if err := ow.BeginStream(outSerial); err != nil {
		return err
	}
	if err := ow.WritePacket(outSerial, headers.Identification, 0, false); err != nil {
		return err
	}
	if err := ow.WritePacket(outSerial, headers.Comment, 0, false); err != nil {
		return err
	}
	if err := ow.WritePacket(outSerial, headers.Setup, 0, false); err != nil {
		return err
	}

	codewords := make([]*vorbis.Codewords, len(stream.Setup.Codebooks))
	for i, cb := range stream.Setup.Codebooks {
		codewords[i] = cb.AssignCodewords(newLengths[i])
	}

	// Pass 2: re-decode the cached original packets, re-emitting under
	// the new codeword assignment.
	var granule uint64
	prevLong = nil
	startOffset := uint64(0)
	if !cfg.IgnoreStartSampleOffset && len(buf.granules) > 3 && buf.hasGranule[3] {
		startOffset = buf.granules[3]
	}
	for i, data := range audioPackets {
		bw := bitpack.NewWriter()
		ctx2 := &vorbis.TranscodeContext{Books: stream.Setup.Codebooks, New: codewords, W: bw}
		var long bool
		samples, err := transcode.Packet(data, stream, ctx2, prevLong, &long)
		if err != nil {
			return errs.New(errs.VorbisHeaderMalformed, "pass 2 re-emit").WithSerial(buf.serial).WithPacket(int64(i)).WithErr(err)
		}
		prevLong = &long
		granule += uint64(samples)

		last := i == len(audioPackets)-1
		emitGranule := granule + startOffset
		if last && buf.hasDeclared {
			emitGranule = buf.declaredEnd
		}
		if err := ow.WritePacket(outSerial, bw.Bytes(), emitGranule, true); err != nil {
			return err
		}
	}

	return ow.CloseStream(outSerial)
}

// wrapOggReadError classifies a raw internal/ogg sentinel error into its
// typed errs.Kind, attaching the byte offset reached so far.
func wrapOggReadError(err error, offset int64) error {
	kind := errs.OggStructural
	if err == ogg.ErrBadCRC {
		kind = errs.OggCorruptedPage
	}
	return errs.New(kind, "read ogg page").WithOffset(offset).WithErr(err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
