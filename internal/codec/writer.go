package codec

import "encoding/binary"

// appendU32LE appends v as 4 little-endian bytes to dst.
func appendU32LE(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// appendU64LE appends v as 8 little-endian bytes to dst.
func appendU64LE(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// appendVarInt appends the CompactSize encoding of n to dst.
func appendVarInt(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(n))
		return append(dst, buf[:]...)
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return appendU32LE(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return appendU64LE(dst, n)
	}
}

func appendVarBytes(dst []byte, b []byte) []byte {
	dst = appendVarInt(dst, uint64(len(b)))
	return append(dst, b...)
}
