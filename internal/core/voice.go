package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// VoiceWriter accepts outbound voice packets. The transport multiplexer
// implements it and decides the physical path.
type VoiceWriter interface {
	WriteVoice(*wire.VoicePacket) error
}

// PCMChunk is the canonical internal audio unit: interleaved float
// samples normalized to [-1, 1] at 48 kHz, with an optional position.
type PCMChunk struct {
	PCM      []float32
	Position *domain.Position
}

// OutStream packetizes one outgoing transmission: it encodes accepted
// chunks and writes sequenced packets for a single target. Without a
// codec provider every write is silently discarded; nothing is buffered
// and nothing errors. Writes block on the encoder and the transport, so
// a producer ahead of the wire pauses instead of piling up chunks.
type OutStream struct {
	target   domain.VoiceTarget
	channels int
	codec    domain.Codec
	enc      FrameEncoder
	w        VoiceWriter

	mu     sync.Mutex
	seq    uint32
	closed bool
}

// NewOutStream starts a transmission toward the given target. A nil
// provider yields a discarding stream.
func NewOutStream(p CodecProvider, w VoiceWriter, target domain.VoiceTarget, channels int) (*OutStream, error) {
	s := &OutStream{target: target, channels: channels, w: w}
	if p == nil {
		log.Debug().Str("module", "core.voice").Msg("no codec provider, voice stream will discard input")
		return s, nil
	}

	codec, ok := PickCodec(p)
	if !ok {
		return nil, fmt.Errorf("codec provider supports no codecs")
	}
	enc, err := p.NewEncoder(codec, channels)
	if err != nil {
		return nil, fmt.Errorf("new %v encoder: %w", codec, err)
	}
	s.codec = codec
	s.enc = enc
	return s, nil
}

// Write encodes one chunk and sends it as the next packet of the
// transmission.
func (s *OutStream) Write(chunk PCMChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil || s.closed {
		return nil
	}

	frame, err := s.enc.Encode(chunk.PCM)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	pkt := &wire.VoicePacket{
		SeqNum:   s.seq,
		Codec:    s.codec,
		Target:   uint8(s.target),
		Frames:   [][]byte{frame},
		Position: chunk.Position,
	}
	s.seq++
	return s.w.WriteVoice(pkt)
}

// WritePCM sends plain samples with no position.
func (s *OutStream) WritePCM(pcm []float32) error {
	return s.Write(PCMChunk{PCM: pcm})
}

// WritePCM16 accepts raw little-endian 16-bit samples and normalizes
// them before encoding.
func (s *OutStream) WritePCM16(raw []byte) error {
	pcm := make([]float32, len(raw)/2)
	for i := range pcm {
		sample := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		pcm[i] = float32(sample) / math.MaxInt16
	}
	return s.Write(PCMChunk{PCM: pcm})
}

// Close ends the transmission. The terminal packet goes out even when
// no audio was written, so receivers always see the boundary. Closing
// twice is a no-op.
func (s *OutStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil || s.closed {
		s.closed = true
		return nil
	}
	s.closed = true

	pkt := &wire.VoicePacket{
		SeqNum: s.seq,
		Codec:  s.codec,
		Target: uint8(s.target),
		End:    true,
	}
	s.seq++
	werr := s.w.WriteVoice(pkt)
	if cerr := s.enc.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// Depacketizer routes inbound voice packets to the users that produced
// them. Arrival order is whatever the voice transport delivered; a gap
// in sequence numbers means a lost frame, not an error.
type Depacketizer struct {
	dir *Directory
}

func NewDepacketizer(dir *Directory) *Depacketizer {
	return &Depacketizer{dir: dir}
}

// Dispatch attributes one packet. A source the directory has never seen
// means the server and client disagree about who exists; continuing
// would attribute audio to nothing, so that is a session-fatal error.
func (d *Depacketizer) Dispatch(pkt *wire.VoicePacket) error {
	u, ok := d.dir.User(pkt.Source)
	if !ok {
		return fmt.Errorf("voice packet from unknown session %d", pkt.Source)
	}
	if u.OnVoice == nil {
		return nil
	}
	u.OnVoice(&domain.VoiceDelivery{
		SeqNum:   pkt.SeqNum,
		Codec:    pkt.Codec,
		Target:   provenanceOf(pkt.Target),
		Frames:   pkt.Frames,
		Position: pkt.Position,
		End:      pkt.End,
	})
	return nil
}

// provenanceOf maps the numeric receive-side target to its label:
// 0 is normal talk, 31 is a direct whisper, everything between is a
// shout into the listener's channel or tree.
func provenanceOf(target uint8) domain.Provenance {
	switch {
	case target == 0:
		return domain.ProvenanceNormal
	case target == 31:
		return domain.ProvenanceWhisper
	default:
		return domain.ProvenanceShout
	}
}
