package ogg

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Packet is a single Vorbis packet demultiplexed from an Ogg stream, tagged
// with the logical bitstream it belongs to.
type Packet struct {
	// Data is the packet payload, reassembled across page boundaries if the
	// packet was split.
	Data []byte

	// Serial identifies the logical bitstream this packet belongs to.
	Serial uint32

	// GranulePos is the granule position of the page this packet finished
	// on. Valid only when HasGranulePos is true; packets that don't finish
	// a page (because a later packet shares the page, or the packet
	// continues onto the next page) carry no granule position of their own.
	GranulePos uint64
	HasGranulePos bool

	// BOS is true for the first packet of a logical bitstream.
	BOS bool

	// EOS is true for the last packet of a logical bitstream.
	EOS bool
}

// streamState tracks per-logical-bitstream reassembly state. Ogg pages from
// distinct logical bitstreams are interleaved in the container, so this
// state must live per serial number rather than on the Reader itself; the
// teacher's single global pending-packet queue could not have supported
// more than one concurrent stream without corrupting unrelated streams.
type streamState struct {
	partial      []byte
	finished     bool
	sawFirstPage bool
	lastPageSeq  uint32
}

// Reader demultiplexes Ogg pages into Vorbis packets, reassembling packets
// that span multiple pages and tracking one or more interleaved logical
// bitstreams by serial number.
type Reader struct {
	r            io.Reader
	pageBuffer   []byte
	bufferOffset int
	bufferLen    int

	streams map[uint32]*streamState
	ready   []Packet

	// RepairMode, when true, tolerates page sequence gaps and CRC mismatches
	// (logging a warning via Logger instead of returning ErrSequenceGap or
	// ErrBadCRC) rather than failing the remux outright.
	RepairMode bool
	Logger     *logrus.Entry
}

// tolerateCRC reports whether a page that failed its checksum should still
// be used. Off by default: a corrupted page's payload is, by definition,
// not known-good, so only an explicit repair request accepts it.
func (rd *Reader) tolerateCRC(page *Page) bool {
	if !rd.RepairMode || page == nil {
		return false
	}
	if rd.Logger != nil {
		rd.Logger.WithFields(logrus.Fields{
			"serial":   page.SerialNumber,
			"sequence": page.PageSequence,
		}).Warn("ogg page CRC mismatch, using page anyway (repair mode)")
	}
	return true
}

// readerBufferSize is the initial size of the internal read buffer.
const readerBufferSize = 64 * 1024

// NewReader creates a Reader over r. No data is read until the first call
// to ReadPacket.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:          r,
		pageBuffer: make([]byte, readerBufferSize),
		streams:    make(map[uint32]*streamState),
	}
}

// ReadPacket returns the next demultiplexed packet. Returns io.EOF once the
// underlying reader is exhausted and no further packets remain.
func (rd *Reader) ReadPacket() (Packet, error) {
	for len(rd.ready) == 0 {
		page, err := rd.readPage()
		if err != nil {
			return Packet{}, err
		}
		if err := rd.processPage(page); err != nil {
			return Packet{}, err
		}
	}
	p := rd.ready[0]
	rd.ready = rd.ready[1:]
	return p, nil
}

// streamFor returns the reassembly state for serial, creating it on first
// sight of that logical bitstream.
func (rd *Reader) streamFor(serial uint32) *streamState {
	st, ok := rd.streams[serial]
	if !ok {
		st = &streamState{}
		rd.streams[serial] = st
	}
	return st
}

// checkSequence validates page's sequence number against the last one seen
// for its stream. In repair mode a gap is logged and tolerated; otherwise
// it is returned as ErrSequenceGap.
func (rd *Reader) checkSequence(st *streamState, page *Page) error {
	defer func() {
		st.lastPageSeq = page.PageSequence
		st.sawFirstPage = true
	}()

	if !st.sawFirstPage {
		return nil
	}
	expected := st.lastPageSeq + 1
	if page.PageSequence == expected {
		return nil
	}

	if rd.Logger != nil {
		rd.Logger.WithFields(logrus.Fields{
			"serial":   page.SerialNumber,
			"expected": expected,
			"got":      page.PageSequence,
		}).Warn("ogg page sequence gap")
	}
	if rd.RepairMode {
		return nil
	}
	return ErrSequenceGap
}

// processPage extracts complete packets from page, queuing them onto
// rd.ready, and folds any trailing unterminated segment run into the
// owning stream's partial-packet buffer for reassembly on the next page.
func (rd *Reader) processPage(page *Page) error {
	st := rd.streamFor(page.SerialNumber)
	if st.finished {
		// Serial reused after that stream's EOS page; silently discarded
		// rather than treated as a fresh (or corrupt) stream.
		return nil
	}

	if err := rd.checkSequence(st, page); err != nil {
		return err
	}

	lengths := page.PacketLengths()
	sum := 0
	for _, l := range lengths {
		sum += l
	}
	trailing := page.Payload[sum:]

	packets := page.Packets()
	n := len(packets)

	switch {
	case n == 0 && len(trailing) > 0:
		// Entire page is one unterminated segment run: either a
		// continuation of an in-flight packet or, if not marked as a
		// continuation, the start of a new packet that continues on the
		// next page (any stale partial is dropped).
		if page.IsContinuation() {
			st.partial = append(st.partial, trailing...)
		} else {
			st.partial = append([]byte(nil), trailing...)
		}
	case n > 0:
		first := packets[0]
		if page.IsContinuation() && len(st.partial) > 0 {
			first = append(append([]byte{}, st.partial...), first...)
		}
		st.partial = nil

		for i := 0; i < n; i++ {
			data := packets[i]
			if i == 0 {
				data = first
			}
			isLast := i == n-1
			finishesPage := isLast && len(trailing) == 0
			rd.ready = append(rd.ready, Packet{
				Data:          data,
				Serial:        page.SerialNumber,
				GranulePos:    page.GranulePos,
				HasGranulePos: finishesPage,
				BOS:           page.IsBOS() && i == 0,
				EOS:           page.IsEOS() && isLast,
			})
		}

		if len(trailing) > 0 {
			st.partial = append(st.partial, trailing...)
		}
	}

	if page.IsEOS() {
		st.finished = true
		st.partial = nil
	}

	return nil
}

// readPage reads the next Ogg page from the underlying reader, growing and
// compacting the internal buffer as needed.
func (rd *Reader) readPage() (*Page, error) {
	for {
		if rd.bufferLen > rd.bufferOffset {
			page, consumed, err := ParsePage(rd.pageBuffer[rd.bufferOffset:rd.bufferLen])
			if err == nil || (err == ErrBadCRC && rd.tolerateCRC(page)) {
				rd.bufferOffset += consumed
				return page, nil
			}
			// ErrInvalidPage alone means "not enough bytes buffered yet";
			// anything else (ErrBadCRC in strict mode) is permanent and
			// reading more data from rd.r cannot fix it.
			if err != ErrInvalidPage {
				return nil, err
			}
		}

		if rd.bufferOffset > 0 {
			remaining := rd.bufferLen - rd.bufferOffset
			if remaining > 0 {
				copy(rd.pageBuffer, rd.pageBuffer[rd.bufferOffset:rd.bufferLen])
			}
			rd.bufferLen = remaining
			rd.bufferOffset = 0
		}

		if rd.bufferLen >= len(rd.pageBuffer) {
			newBuffer := make([]byte, len(rd.pageBuffer)*2)
			copy(newBuffer, rd.pageBuffer[:rd.bufferLen])
			rd.pageBuffer = newBuffer
		}

		n, err := rd.r.Read(rd.pageBuffer[rd.bufferLen:])
		if n > 0 {
			rd.bufferLen += n
		}
		if err != nil {
			if err == io.EOF && rd.bufferLen > rd.bufferOffset {
				page, consumed, parseErr := ParsePage(rd.pageBuffer[rd.bufferOffset:rd.bufferLen])
				if parseErr == nil || (parseErr == ErrBadCRC && rd.tolerateCRC(page)) {
					rd.bufferOffset += consumed
					return page, nil
				}
				if parseErr != ErrInvalidPage {
					return nil, parseErr
				}
			}
			return nil, err
		}
	}
}
