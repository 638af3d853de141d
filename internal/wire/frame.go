package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// FrameHeaderSize is the fixed control-frame prefix: kind + length.
	FrameHeaderSize = 6

	// MaxFrameLen bounds a single control frame. Anything larger is a
	// protocol violation, not a big message.
	MaxFrameLen = 8 * 1024 * 1024
)

var (
	ErrFrameShort    = errors.New("frame too short")
	ErrFrameOversize = errors.New("frame exceeds size limit")
)

// FrameHeader prefixes every control frame on a stream transport.
type FrameHeader struct {
	Kind   uint16
	Length uint32
}

func (h FrameHeader) Encode() []byte {
	buf := make([]byte, FrameHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.Kind)
	binary.BigEndian.PutUint32(buf[2:6], h.Length)
	return buf
}

func (h *FrameHeader) Decode(data []byte) error {
	if len(data) < FrameHeaderSize {
		return ErrFrameShort
	}
	h.Kind = binary.BigEndian.Uint16(data[0:2])
	h.Length = binary.BigEndian.Uint32(data[2:6])
	if h.Length > MaxFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameOversize, h.Length)
	}
	return nil
}
