package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ebonn/mumlink/internal/domain"
)

func TestFrameHeaderEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		header FrameHeader
	}{
		{name: "user state", header: FrameHeader{Kind: KindUserState, Length: 1024}},
		{name: "zero length ping", header: FrameHeader{Kind: KindPing, Length: 0}},
		{name: "tunnel", header: FrameHeader{Kind: KindUDPTunnel, Length: 480}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.header.Encode()
			if len(encoded) != FrameHeaderSize {
				t.Errorf("Encode() length = %d, want %d", len(encoded), FrameHeaderSize)
			}

			var decoded FrameHeader
			if err := decoded.Decode(encoded); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if decoded != tt.header {
				t.Errorf("Decode() = %+v, want %+v", decoded, tt.header)
			}
		})
	}
}

func TestFrameHeaderDecodeErrors(t *testing.T) {
	var h FrameHeader
	if err := h.Decode([]byte{0x00, 0x09}); !errors.Is(err, ErrFrameShort) {
		t.Errorf("short input: err = %v, want ErrFrameShort", err)
	}

	oversize := FrameHeader{Kind: KindUserState, Length: MaxFrameLen + 1}.Encode()
	if err := h.Decode(oversize); !errors.Is(err, ErrFrameOversize) {
		t.Errorf("oversize length: err = %v, want ErrFrameOversize", err)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000,
		0xFFFFFFF, 0x10000000, 0xFFFFFFFF, 0x100000000, 1<<63 + 17}

	for _, v := range values {
		buf := PutVarint(nil, v)
		got, n, err := Varint(buf)
		if err != nil {
			t.Fatalf("Varint(%#x) error = %v", v, err)
		}
		if n != len(buf) {
			t.Errorf("Varint(%#x) consumed %d of %d bytes", v, n, len(buf))
		}
		if got != v {
			t.Errorf("round trip = %#x, want %#x", got, v)
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	buf := PutVarint(nil, 0x200000)
	if _, _, err := Varint(buf[:2]); !errors.Is(err, ErrVarint) {
		t.Errorf("truncated input: err = %v, want ErrVarint", err)
	}
	if _, _, err := Varint(nil); !errors.Is(err, ErrVarint) {
		t.Errorf("empty input: err = %v, want ErrVarint", err)
	}
}

func TestVoicePacketRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  VoicePacket
	}{
		{
			name: "opus frame",
			pkt: VoicePacket{
				SeqNum: 42,
				Codec:  domain.CodecOpus,
				Target: 0,
				Frames: [][]byte{{0xDE, 0xAD, 0xBE, 0xEF}},
			},
		},
		{
			name: "whisper target with position",
			pkt: VoicePacket{
				SeqNum:   7,
				Codec:    domain.CodecOpus,
				Target:   31,
				Frames:   [][]byte{{0x01}, {0x02, 0x03}},
				Position: &domain.Position{X: 1, Y: -2.5, Z: 400},
			},
		},
		{
			name: "terminal packet",
			pkt: VoicePacket{
				SeqNum: 9,
				Codec:  domain.CodecOpus,
				End:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeVoicePacket(&tt.pkt)

			// Splice in a source id the way the server does when relaying.
			withSource := append([]byte{encoded[0]}, PutVarint(nil, 123)...)
			withSource = append(withSource, encoded[1:]...)

			decoded, err := DecodeVoicePacket(withSource)
			if err != nil {
				t.Fatalf("DecodeVoicePacket() error = %v", err)
			}
			if decoded.Source != 123 {
				t.Errorf("Source = %d, want 123", decoded.Source)
			}
			if decoded.SeqNum != tt.pkt.SeqNum {
				t.Errorf("SeqNum = %d, want %d", decoded.SeqNum, tt.pkt.SeqNum)
			}
			if decoded.Codec != tt.pkt.Codec {
				t.Errorf("Codec = %d, want %d", decoded.Codec, tt.pkt.Codec)
			}
			if decoded.Target != tt.pkt.Target {
				t.Errorf("Target = %d, want %d", decoded.Target, tt.pkt.Target)
			}
			if decoded.End != tt.pkt.End {
				t.Errorf("End = %v, want %v", decoded.End, tt.pkt.End)
			}
			if len(decoded.Frames) != len(tt.pkt.Frames) {
				t.Fatalf("frame count = %d, want %d", len(decoded.Frames), len(tt.pkt.Frames))
			}
			for i := range decoded.Frames {
				if !bytes.Equal(decoded.Frames[i], tt.pkt.Frames[i]) {
					t.Errorf("frame %d = %x, want %x", i, decoded.Frames[i], tt.pkt.Frames[i])
				}
			}
			if (decoded.Position == nil) != (tt.pkt.Position == nil) {
				t.Fatalf("position presence = %v, want %v", decoded.Position != nil, tt.pkt.Position != nil)
			}
			if decoded.Position != nil && *decoded.Position != *tt.pkt.Position {
				t.Errorf("Position = %+v, want %+v", *decoded.Position, *tt.pkt.Position)
			}
		})
	}
}

func TestVoicePacketTruncated(t *testing.T) {
	pkt := VoicePacket{SeqNum: 1, Codec: domain.CodecOpus, Frames: [][]byte{{1, 2, 3, 4}}}
	encoded := EncodeVoicePacket(&pkt)
	withSource := append([]byte{encoded[0]}, PutVarint(nil, 5)...)
	withSource = append(withSource, encoded[1:]...)

	for cut := 1; cut < len(withSource); cut++ {
		if _, err := DecodeVoicePacket(withSource[:cut]); err == nil {
			t.Errorf("DecodeVoicePacket() with %d bytes: expected error", cut)
		}
	}
}
