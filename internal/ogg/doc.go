// Package ogg implements the Ogg encapsulation format (RFC 3533) as used to
// carry Vorbis I logical bitstreams.
//
// This package is deliberately codec-agnostic: it knows about pages, packets,
// segment tables, and logical-stream demultiplexing by serial number, but
// nothing about Vorbis header or audio packet contents. Vorbis-specific
// parsing lives in the sibling vorbis package.
//
// # Page Structure
//
//	Bytes 0-3:   "OggS" capture pattern (magic signature)
//	Byte 4:      Stream structure version (always 0)
//	Byte 5:      Header type flags (continuation, BOS, EOS)
//	Bytes 6-13:  Granule position
//	Bytes 14-17: Bitstream serial number
//	Bytes 18-21: Page sequence number
//	Bytes 22-25: CRC-32 checksum
//	Byte 26:     Number of segments
//	Bytes 27+:   Segment table (one byte per segment)
//	Remaining:   Page payload data
//
// # Segment Table
//
// Packets are split into segments of up to 255 bytes each. A segment value
// of 255 indicates the packet continues into the next segment; a value less
// than 255 marks the end of a packet. A packet whose length is an exact
// multiple of 255 needs a trailing zero-length segment to disambiguate
// termination from continuation.
//
// Example: a 600-byte packet uses segments [255, 255, 90] (255+255+90=600).
//
// # CRC Calculation
//
// Ogg uses CRC-32 with polynomial 0x04C11DB7 (not the IEEE polynomial used
// by hash/crc32). The CRC is computed over the entire page with the CRC
// field set to zero.
//
// # References
//
//   - RFC 3533: The Ogg Encapsulation Format Version 0
//   - The Vorbis I specification, appendix A ("Embedding Vorbis into an Ogg
//     stream")
package ogg
