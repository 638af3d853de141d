// Package stream frames a byte-stream connection (TCP, TLS) into the
// discrete control packets the session engine consumes.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/wire"
)

// Conn adapts an io.ReadWriteCloser into a core.Transport. Every frame
// written to the wire carries a wire.FrameHeader prefix whose kind is
// the frame's own leading 16-bit kind and whose length covers the rest.
type Conn struct {
	rwc io.ReadWriteCloser

	readMu  sync.Mutex
	writeMu sync.Mutex
}

var _ core.Transport = (*Conn)(nil)

func New(rwc io.ReadWriteCloser) *Conn {
	return &Conn{rwc: rwc}
}

func (c *Conn) ReadPacket() (core.Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var hdr [wire.FrameHeaderSize]byte
	if _, err := io.ReadFull(c.rwc, hdr[:]); err != nil {
		return nil, err
	}
	var h wire.FrameHeader
	if err := h.Decode(hdr[:]); err != nil {
		return nil, err
	}

	frame := make([]byte, 2+h.Length)
	binary.BigEndian.PutUint16(frame[:2], h.Kind)
	if _, err := io.ReadFull(c.rwc, frame[2:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *Conn) WritePacket(frame core.Frame) error {
	if len(frame) < 2 {
		return wire.ErrFrameShort
	}
	if len(frame)-2 > wire.MaxFrameLen {
		return fmt.Errorf("%w: %d bytes", wire.ErrFrameOversize, len(frame)-2)
	}

	h := wire.FrameHeader{
		Kind:   binary.BigEndian.Uint16(frame[:2]),
		Length: uint32(len(frame) - 2),
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.rwc.Write(h.Encode()); err != nil {
		return err
	}
	if len(frame) > 2 {
		if _, err := c.rwc.Write(frame[2:]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) Close() error {
	return c.rwc.Close()
}
