package ogg

import "io"

// noGranulePos is the on-the-wire sentinel (all bits set) for "no packet
// completes on this page".
const noGranulePos = ^uint64(0)

// streamWriterState tracks per-logical-bitstream page-building state. Page
// sequence numbers and the in-progress page accumulator are per stream: a
// Writer multiplexes several logical bitstreams, each restarting its page
// sequence at 0 and carrying its own BOS/EOS bookkeeping.
type streamWriterState struct {
	serial  uint32
	pageSeq uint32

	bosPending   bool
	continuation bool
	closed       bool

	pendingData     []byte
	pendingSegTable []byte
	pendingSegments int

	hasGranulePos  bool
	granulePos     uint64
	lastGranulePos uint64
}

// Writer packs Vorbis packets into Ogg pages, tightly filling each page's
// 255-segment table before starting a new one rather than writing one
// packet per page. It can multiplex any number of logical bitstreams
// concurrently, identified by caller-supplied serial numbers.
type Writer struct {
	w       io.Writer
	streams map[uint32]*streamWriterState
}

// NewWriter creates a Writer over w. No data is written until a stream is
// begun and packets are supplied.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:       w,
		streams: make(map[uint32]*streamWriterState),
	}
}

// BeginStream registers a new logical bitstream with the given serial
// number. The first packet written for this serial will start a BOS page.
func (ow *Writer) BeginStream(serial uint32) error {
	if _, exists := ow.streams[serial]; exists {
		return ErrInvalidPage
	}
	ow.streams[serial] = &streamWriterState{
		serial:     serial,
		bosPending: true,
	}
	return nil
}

func (ow *Writer) stream(serial uint32) (*streamWriterState, error) {
	st, ok := ow.streams[serial]
	if !ok {
		return nil, ErrInvalidPage
	}
	if st.closed {
		return nil, ErrUnexpectedEOS
	}
	return st, nil
}

// WritePacket buffers data as the next packet on serial's logical
// bitstream, flushing full pages as the 255-segment table fills. If the
// packet finishes a page, granulePos is stamped on that page; hasGranulePos
// should be false for packets whose completion point carries no meaningful
// sample position (the caller tracks that).
func (ow *Writer) WritePacket(serial uint32, data []byte, granulePos uint64, hasGranulePos bool) error {
	st, err := ow.stream(serial)
	if err != nil {
		return err
	}

	offset := 0
	for {
		capacity := 255 - st.pendingSegments
		if capacity <= 0 {
			if err := ow.flushPage(st, false); err != nil {
				return err
			}
			capacity = 255
		}

		chunk := data[offset:]
		maxBytes := capacity * 255

		if len(chunk) >= maxBytes {
			// Packet does not fit in the remaining room on this page (one of
			// exactly maxBytes would need a trailing zero-length segment
			// beyond it); fill the page with full (255-byte) segments and
			// continue on the next page without terminating the packet here.
			chunkLen := maxBytes
			segs := make([]byte, capacity)
			for i := range segs {
				segs[i] = 255
			}
			st.pendingData = append(st.pendingData, chunk[:chunkLen]...)
			st.pendingSegTable = append(st.pendingSegTable, segs...)
			st.pendingSegments += capacity
			offset += chunkLen

			if err := ow.flushPage(st, false); err != nil {
				return err
			}
			st.continuation = true
			continue
		}

		segs := BuildSegmentTable(len(chunk))
		st.pendingData = append(st.pendingData, chunk...)
		st.pendingSegTable = append(st.pendingSegTable, segs...)
		st.pendingSegments += len(segs)

		if hasGranulePos {
			st.hasGranulePos = true
			st.granulePos = granulePos
			st.lastGranulePos = granulePos
		}
		break
	}

	return nil
}

// Flush forces out any buffered page for serial without closing the
// stream. Used by callers that need page boundaries to align with
// something other than the 255-segment limit (none currently do, but it
// keeps the accumulator from being the only way to force a page).
func (ow *Writer) Flush(serial uint32) error {
	st, err := ow.stream(serial)
	if err != nil {
		return err
	}
	return ow.flushPage(st, false)
}

// CloseStream writes the final (EOS) page for serial and marks it closed.
// A stream never ends on a page whose granule position is the -1 sentinel:
// if no packet happens to finish exactly on the final page, the last known
// granule position is carried forward onto it instead.
func (ow *Writer) CloseStream(serial uint32) error {
	st, err := ow.stream(serial)
	if err != nil {
		return err
	}
	if !st.hasGranulePos {
		st.hasGranulePos = true
		st.granulePos = st.lastGranulePos
	}
	if err := ow.flushPage(st, true); err != nil {
		return err
	}
	st.closed = true
	return nil
}

// flushPage emits the accumulated segment table and payload for st as one
// Ogg page, then resets the accumulator.
func (ow *Writer) flushPage(st *streamWriterState, eos bool) error {
	if st.pendingSegments == 0 && !eos {
		return nil
	}

	var headerType byte
	if st.bosPending {
		headerType |= PageFlagBOS
		st.bosPending = false
	}
	if st.continuation {
		headerType |= PageFlagContinuation
		st.continuation = false
	}
	if eos {
		headerType |= PageFlagEOS
	}

	granule := noGranulePos
	if st.hasGranulePos {
		granule = st.granulePos
	}

	page := &Page{
		Version:      0,
		HeaderType:   headerType,
		GranulePos:   granule,
		SerialNumber: st.serial,
		PageSequence: st.pageSeq,
		Segments:     st.pendingSegTable,
		Payload:      st.pendingData,
	}

	if _, err := ow.w.Write(page.Encode()); err != nil {
		return err
	}

	st.pageSeq++
	st.pendingData = nil
	st.pendingSegTable = nil
	st.pendingSegments = 0
	st.hasGranulePos = false

	return nil
}
