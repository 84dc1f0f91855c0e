package cache

import "encoding/binary"

// fileHeaderVersion is the only cache file header version this package
// understands. A stored file with any other version is rejected outright.
const fileHeaderVersion = 1

// fileHeaderTypeHTTP marks a cache entry as HTTP-fetched content - the
// only entry type this cache knows how to produce or read.
const fileHeaderTypeHTTP = 1

// fileHeaderSize is the on-disk size of fileHeader: version(1) + type(1)
// + etagLength(2) + contentLength(4), little-endian.
const fileHeaderSize = 8

type fileHeader struct {
	version       uint8
	typ           uint8
	etagLength    uint16
	contentLength uint32
}

func (h fileHeader) encode() [fileHeaderSize]byte {
	var buf [fileHeaderSize]byte
	buf[0] = h.version
	buf[1] = h.typ
	binary.LittleEndian.PutUint16(buf[2:4], h.etagLength)
	binary.LittleEndian.PutUint32(buf[4:8], h.contentLength)
	return buf
}

func decodeFileHeader(buf []byte) (fileHeader, bool) {
	if len(buf) != fileHeaderSize {
		return fileHeader{}, false
	}
	return fileHeader{
		version:       buf[0],
		typ:           buf[1],
		etagLength:    binary.LittleEndian.Uint16(buf[2:4]),
		contentLength: binary.LittleEndian.Uint32(buf[4:8]),
	}, true
}
