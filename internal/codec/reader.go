package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/dogebridge/dogebridge/internal/config"
)

// reader is a finite cursor over an in-memory buffer. Every read either
// advances pos and returns data, or leaves pos untouched and returns a
// wrapped config.ErrMalformed.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) remaining() int {
	if r.pos >= len(r.b) {
		return 0
	}
	return len(r.b) - r.pos
}

func (r *reader) readExact(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: unexpected EOF reading %d bytes", config.ErrMalformed, n)
	}
	start := r.pos
	r.pos += n
	return r.b[start:r.pos], nil
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readU32LE() (uint32, error) {
	b, err := r.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readU64LE() (uint64, error) {
	b, err := r.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readHash() (Hash, error) {
	b, err := r.readExact(32)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// readVarInt decodes a CompactSize-style length prefix: <0xfd -> 1 byte,
// 0xfd+u16, 0xfe+u32, 0xff+u64. Non-minimal encodings are rejected.
func (r *reader) readVarInt() (uint64, error) {
	tag, err := r.readU8()
	if err != nil {
		return 0, err
	}
	switch {
	case tag < 0xfd:
		return uint64(tag), nil
	case tag == 0xfd:
		b, err := r.readExact(2)
		if err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint16(b))
		if v < 0xfd {
			return 0, fmt.Errorf("%w: non-minimal varint (0xfd)", config.ErrMalformed)
		}
		return v, nil
	case tag == 0xfe:
		b, err := r.readExact(4)
		if err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint32(b))
		if v <= 0xffff {
			return 0, fmt.Errorf("%w: non-minimal varint (0xfe)", config.ErrMalformed)
		}
		return v, nil
	default: // 0xff
		b, err := r.readExact(8)
		if err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(b)
		if v <= 0xffffffff {
			return 0, fmt.Errorf("%w: non-minimal varint (0xff)", config.ErrMalformed)
		}
		return v, nil
	}
}

// maxVectorLen bounds vector lengths decoded from a varint so a corrupt
// length prefix cannot trigger an unbounded allocation.
const maxVectorLen = 1 << 24

func (r *reader) readVarBytes() ([]byte, error) {
	n, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	if n > maxVectorLen {
		return nil, fmt.Errorf("%w: varint length %d exceeds bound", config.ErrMalformed, n)
	}
	return r.readExact(int(n))
}
