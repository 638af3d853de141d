package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/ebonn/mumlink/internal/domain"
)

var ErrVoiceShort = errors.New("voice packet truncated")

const (
	voiceFlagEnd      = 0x01
	voiceFlagPosition = 0x02
)

// EncodeVoicePacket serializes an outgoing voice packet. The source id
// is never on outgoing packets; the server stamps it when relaying.
//
// Layout: header byte (codec in the high 3 bits, target in the low 5),
// varint seq, flags byte, varint frame count, varint-length-prefixed
// frames, then 12 bytes of position when present.
func EncodeVoicePacket(p *VoicePacket) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, byte(p.Codec)<<5|p.Target&0x1F)
	buf = PutVarint(buf, uint64(p.SeqNum))

	var flags byte
	if p.End {
		flags |= voiceFlagEnd
	}
	if p.Position != nil {
		flags |= voiceFlagPosition
	}
	buf = append(buf, flags)

	buf = PutVarint(buf, uint64(len(p.Frames)))
	for _, f := range p.Frames {
		buf = PutVarint(buf, uint64(len(f)))
		buf = append(buf, f...)
	}
	if p.Position != nil {
		buf = appendFloat(buf, p.Position.X)
		buf = appendFloat(buf, p.Position.Y)
		buf = appendFloat(buf, p.Position.Z)
	}
	return buf
}

// DecodeVoicePacket parses an incoming voice packet, which carries the
// source session id stamped by the server after the header byte.
func DecodeVoicePacket(data []byte) (*VoicePacket, error) {
	if len(data) < 2 {
		return nil, ErrVoiceShort
	}
	p := &VoicePacket{
		Codec:  domain.Codec(data[0] >> 5),
		Target: data[0] & 0x1F,
	}
	rest := data[1:]

	source, n, err := Varint(rest)
	if err != nil {
		return nil, err
	}
	p.Source = domain.SessionID(source)
	rest = rest[n:]

	seq, n, err := Varint(rest)
	if err != nil {
		return nil, err
	}
	p.SeqNum = uint32(seq)
	rest = rest[n:]

	if len(rest) < 1 {
		return nil, ErrVoiceShort
	}
	flags := rest[0]
	rest = rest[1:]
	p.End = flags&voiceFlagEnd != 0

	count, n, err := Varint(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]
	for i := uint64(0); i < count; i++ {
		flen, n, err := Varint(rest)
		if err != nil {
			return nil, err
		}
		rest = rest[n:]
		if uint64(len(rest)) < flen {
			return nil, ErrVoiceShort
		}
		p.Frames = append(p.Frames, rest[:flen])
		rest = rest[flen:]
	}

	if flags&voiceFlagPosition != 0 {
		if len(rest) < 12 {
			return nil, ErrVoiceShort
		}
		p.Position = &domain.Position{
			X: readFloat(rest[0:4]),
			Y: readFloat(rest[4:8]),
			Z: readFloat(rest[8:12]),
		}
	}
	return p, nil
}

func appendFloat(buf []byte, f float32) []byte {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], math.Float32bits(f))
	return append(buf, raw[:]...)
}

func readFloat(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
