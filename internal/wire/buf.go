package wire

import (
	"encoding/binary"

	"github.com/ebonn/mumlink/internal/domain"
)

// encBuf accumulates a frame; it never fails.
type encBuf struct {
	buf []byte
}

func (e *encBuf) bytes() []byte { return e.buf }

func (e *encBuf) b(v byte)        { e.buf = append(e.buf, v) }
func (e *encBuf) raw(data []byte) { e.buf = append(e.buf, data...) }
func (e *encBuf) varint(v uint64) { e.buf = PutVarint(e.buf, v) }

func (e *encBuf) u16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

func (e *encBuf) u32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encBuf) u64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}

func (e *encBuf) boolean(v bool) {
	if v {
		e.b(1)
	} else {
		e.b(0)
	}
}

func (e *encBuf) str(s string) {
	e.varint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encBuf) blob(data []byte) {
	e.varint(uint64(len(data)))
	e.buf = append(e.buf, data...)
}

func (e *encBuf) sessions(ids []domain.SessionID) {
	e.varint(uint64(len(ids)))
	for _, id := range ids {
		e.varint(uint64(id))
	}
}

func (e *encBuf) channels(ids []domain.ChannelID) {
	e.varint(uint64(len(ids)))
	for _, id := range ids {
		e.varint(uint64(id))
	}
}

// decBuf consumes a frame with a sticky error: after the first failure
// every read returns zero values and the caller checks err once.
type decBuf struct {
	rem []byte
	err error
}

func (d *decBuf) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	// A hostile length varint can exceed the int range and wrap
	// negative; that is a short frame, not a valid slice bound.
	if n < 0 || len(d.rem) < n {
		d.err = ErrFrameShort
		return nil
	}
	out := d.rem[:n]
	d.rem = d.rem[n:]
	return out
}

func (d *decBuf) b() byte {
	v := d.take(1)
	if v == nil {
		return 0
	}
	return v[0]
}

func (d *decBuf) u16() uint16 {
	v := d.take(2)
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint16(v)
}

func (d *decBuf) u32() uint32 {
	v := d.take(4)
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v)
}

func (d *decBuf) u64() uint64 {
	v := d.take(8)
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func (d *decBuf) boolean() bool { return d.b() != 0 }

func (d *decBuf) varint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := Varint(d.rem)
	if err != nil {
		d.err = err
		return 0
	}
	d.rem = d.rem[n:]
	return v
}

func (d *decBuf) str() string {
	n := d.varint()
	return string(d.take(int(n)))
}

func (d *decBuf) blob() []byte {
	n := d.varint()
	v := d.take(int(n))
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (d *decBuf) rest() []byte {
	out := d.rem
	d.rem = nil
	return out
}

func (d *decBuf) sessions() []domain.SessionID {
	n := d.varint()
	var out []domain.SessionID
	for i := uint64(0); i < n && d.err == nil; i++ {
		out = append(out, domain.SessionID(d.varint()))
	}
	return out
}

func (d *decBuf) channels() []domain.ChannelID {
	n := d.varint()
	var out []domain.ChannelID
	for i := uint64(0); i < n && d.err == nil; i++ {
		out = append(out, domain.ChannelID(d.varint()))
	}
	return out
}
