package wire

import "errors"

var ErrVarint = errors.New("malformed varint")

// PutVarint appends v in the protocol's variable-length integer
// encoding: values under 0x80 take one byte, larger values grow a
// prefix, up to a 9-byte form for the full 64-bit range.
func PutVarint(buf []byte, v uint64) []byte {
	switch {
	case v < 0x80:
		return append(buf, byte(v))
	case v < 0x4000:
		return append(buf, byte(v>>8)|0x80, byte(v))
	case v < 0x200000:
		return append(buf, byte(v>>16)|0xC0, byte(v>>8), byte(v))
	case v < 0x10000000:
		return append(buf, byte(v>>24)|0xE0, byte(v>>16), byte(v>>8), byte(v))
	case v < 0x100000000:
		return append(buf, 0xF0, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		buf = append(buf, 0xF4)
		for shift := 56; shift >= 0; shift -= 8 {
			buf = append(buf, byte(v>>uint(shift)))
		}
		return buf
	}
}

// Varint decodes one variable-length integer and reports how many bytes
// it consumed.
func Varint(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, ErrVarint
	}
	b := buf[0]
	switch {
	case b < 0x80:
		return uint64(b), 1, nil
	case b < 0xC0:
		if len(buf) < 2 {
			return 0, 0, ErrVarint
		}
		return uint64(b&0x3F)<<8 | uint64(buf[1]), 2, nil
	case b < 0xE0:
		if len(buf) < 3 {
			return 0, 0, ErrVarint
		}
		return uint64(b&0x1F)<<16 | uint64(buf[1])<<8 | uint64(buf[2]), 3, nil
	case b < 0xF0:
		if len(buf) < 4 {
			return 0, 0, ErrVarint
		}
		return uint64(b&0x0F)<<24 | uint64(buf[1])<<16 | uint64(buf[2])<<8 | uint64(buf[3]), 4, nil
	case b == 0xF0:
		if len(buf) < 5 {
			return 0, 0, ErrVarint
		}
		return uint64(buf[1])<<24 | uint64(buf[2])<<16 | uint64(buf[3])<<8 | uint64(buf[4]), 5, nil
	case b == 0xF4:
		if len(buf) < 9 {
			return 0, 0, ErrVarint
		}
		var v uint64
		for i := 1; i < 9; i++ {
			v = v<<8 | uint64(buf[i])
		}
		return v, 9, nil
	}
	return 0, 0, ErrVarint
}
