package domain

// Codec identifies the audio codec of a voice frame.
type Codec uint8

const (
	CodecCELTAlpha Codec = 0
	CodecPingOnly  Codec = 1
	CodecSpeex     Codec = 2
	CodecCELTBeta  Codec = 3
	CodecOpus      Codec = 4
)

// VoiceTarget selects where outgoing audio goes: 0 is normal talking,
// 1 through 31 address configured whisper/shout target groups.
type VoiceTarget uint8

const (
	TargetNormal     VoiceTarget = 0
	TargetGroupFirst VoiceTarget = 1
	TargetGroupLast  VoiceTarget = 31
)

// Provenance tags received audio with how it reached this client.
type Provenance string

const (
	ProvenanceNormal  Provenance = "normal"
	ProvenanceShout   Provenance = "shout"
	ProvenanceWhisper Provenance = "whisper"
)

// Position is an optional positional-audio coordinate attached to a frame.
type Position struct {
	X, Y, Z float32
}

// VoiceDelivery is one received voice packet, attributed and tagged,
// handed to the owning user's OnVoice handler. Frames stay encoded;
// decoding is the codec provider's business, not the directory's.
type VoiceDelivery struct {
	SeqNum   uint32
	Codec    Codec
	Target   Provenance
	Frames   [][]byte
	Position *Position
	End      bool
}
