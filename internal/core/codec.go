package core

import (
	"time"

	"github.com/ebonn/mumlink/internal/domain"
)

// FrameEncoder turns normalized PCM into encoded frames. One encoder
// serves one transmission.
type FrameEncoder interface {
	Encode(pcm []float32) ([]byte, error)
	Close() error
}

// FrameDecoder turns encoded frames back into PCM. One decoder serves
// one (user, codec) receive stream.
type FrameDecoder interface {
	Decode(frame []byte) ([]float32, error)
	Close() error
}

// CodecProvider is the pluggable audio codec boundary. Factory calls
// must be cheap; they run once per transmission, not per frame.
type CodecProvider interface {
	// Codecs lists supported codec identifiers, preferred first.
	Codecs() []domain.Codec
	// FrameDuration reports the play time of an already-encoded frame.
	FrameDuration(codec domain.Codec, frame []byte) time.Duration
	NewEncoder(codec domain.Codec, channels int) (FrameEncoder, error)
	NewDecoder(user *domain.User, codec domain.Codec) (FrameDecoder, error)
}

// PickCodec applies the fixed negotiation policy: Opus whenever the
// provider supports it, otherwise the provider's first preference.
func PickCodec(p CodecProvider) (domain.Codec, bool) {
	codecs := p.Codecs()
	if len(codecs) == 0 {
		return 0, false
	}
	for _, c := range codecs {
		if c == domain.CodecOpus {
			return c, true
		}
	}
	return codecs[0], true
}
