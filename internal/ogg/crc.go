package ogg

// Ogg CRC-32, polynomial 0x04C11DB7, initial value 0, no input/output
// reflection, no final XOR. See RFC 3533 section 4 and the Ogg framing
// specification at https://xiph.org/ogg/doc/framing.html.
//
// This is NOT the IEEE CRC-32 used by the standard library's hash/crc32
// package (polynomial 0xEDB88320, reflected); that package cannot be reused
// here.
var crcTable [256]uint32

func init() {
	const poly = uint32(0x04C11DB7)
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// crc32 computes the Ogg CRC-32 checksum of data from scratch.
func crc32(data []byte) uint32 {
	return crc32Update(0, data)
}

// crc32Update extends a running CRC with additional data.
func crc32Update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
