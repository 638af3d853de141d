// Package wire defines the typed control messages and voice packets the
// session engine exchanges with a protocol codec. The set of control
// kinds is closed; anything a codec cannot name decodes as Unknown so
// newer servers do not break older clients.
package wire

import "github.com/ebonn/mumlink/internal/domain"

// Control message kind identifiers, as used on the wire.
const (
	KindVersion          uint16 = 0
	KindUDPTunnel        uint16 = 1
	KindAuthenticate     uint16 = 2
	KindPing             uint16 = 3
	KindReject           uint16 = 4
	KindServerSync       uint16 = 5
	KindChannelRemove    uint16 = 6
	KindChannelState     uint16 = 7
	KindUserRemove       uint16 = 8
	KindUserState        uint16 = 9
	KindTextMessage      uint16 = 11
	KindPermissionDenied uint16 = 12
)

// Message is the closed variant set of control messages. Dispatch is an
// exhaustive type switch; Unknown is the forward-compatibility escape.
type Message interface {
	Kind() uint16
}

// Version announces protocol and client versions. Sent first on connect;
// the server replies with its own.
type Version struct {
	Version   uint32
	Release   string
	OS        string
	OSVersion string
}

// Authenticate carries the credentials and codec capability declaration.
type Authenticate struct {
	Username      string
	Password      string
	Tokens        []string
	CeltVers      []int32
	OpusSupported bool
}

// Ping is the keepalive, timestamped by the sender.
type Ping struct {
	Timestamp int64
}

// Reject is the server refusing the handshake. Terminal for the session.
type Reject struct {
	Type   uint32
	Reason string
}

// ServerSync completes the handshake: it names the client's own user,
// the bandwidth cap and the welcome text.
type ServerSync struct {
	Session      domain.SessionID
	MaxBandwidth uint32
	WelcomeText  string
	Permissions  uint64
}

// ChannelState is a partial channel diff. Nil pointer fields were absent
// from the payload and leave the current value unchanged.
type ChannelState struct {
	ChannelID   domain.ChannelID
	Parent      *domain.ChannelID
	Name        *string
	Description *string
	Temporary   *bool
	LinksAdd    []domain.ChannelID
	LinksRemove []domain.ChannelID
}

type ChannelRemove struct {
	ChannelID domain.ChannelID
}

// UserState is a partial user diff, same absent-field semantics as
// ChannelState.
type UserState struct {
	Session        domain.SessionID
	Actor          *domain.SessionID
	Name           *string
	ChannelID      *domain.ChannelID
	Mute           *bool
	Deaf           *bool
	Suppress       *bool
	SelfMute       *bool
	SelfDeaf       *bool
	Recording      *bool
	Comment        *string
	Texture        []byte
	Hash           *string
	PluginContext  []byte
	PluginIdentity *string
}

// UserRemove reports a user leaving, being kicked or banned. Actor and
// Reason describe who removed them and why; they are event data, never
// stored on the user.
type UserRemove struct {
	Session domain.SessionID
	Actor   *domain.SessionID
	Reason  string
	Ban     bool
}

// TextMessage targets any mix of users, channels and channel subtrees.
type TextMessage struct {
	Actor      *domain.SessionID
	Sessions   []domain.SessionID
	ChannelIDs []domain.ChannelID
	TreeIDs    []domain.ChannelID
	Message    string
}

// PermissionDenied is classified into a domain.DenyEvent by the session;
// Type is the raw discriminant.
type PermissionDenied struct {
	Type       uint32
	Permission uint32
	ChannelID  *domain.ChannelID
	Session    *domain.SessionID
	Reason     string
	Name       string
}

// UDPTunnel wraps an encoded voice packet for transport over the control
// channel when no voice transport is available.
type UDPTunnel struct {
	Data []byte
}

// Unknown carries a control kind this client does not implement. It is
// reported and skipped, never fatal.
type Unknown struct {
	RawKind uint16
	Raw     []byte
}

func (Version) Kind() uint16          { return KindVersion }
func (Authenticate) Kind() uint16     { return KindAuthenticate }
func (Ping) Kind() uint16             { return KindPing }
func (Reject) Kind() uint16           { return KindReject }
func (ServerSync) Kind() uint16       { return KindServerSync }
func (ChannelState) Kind() uint16     { return KindChannelState }
func (ChannelRemove) Kind() uint16    { return KindChannelRemove }
func (UserState) Kind() uint16        { return KindUserState }
func (UserRemove) Kind() uint16       { return KindUserRemove }
func (TextMessage) Kind() uint16      { return KindTextMessage }
func (PermissionDenied) Kind() uint16 { return KindPermissionDenied }
func (UDPTunnel) Kind() uint16        { return KindUDPTunnel }
func (u Unknown) Kind() uint16        { return u.RawKind }

// VoicePacket is the raw wire form of one voice frame bundle. Target is
// numeric here: when sending it selects the output group, when receiving
// it encodes delivery provenance.
type VoicePacket struct {
	Source   domain.SessionID
	SeqNum   uint32
	Codec    domain.Codec
	Target   uint8
	Frames   [][]byte
	Position *domain.Position
	End      bool
}

// Codec is the pluggable protocol codec boundary: it owns the binary
// layout of control messages and voice packets, the engine owns only
// their meaning.
type Codec interface {
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
	EncodeVoice(*VoicePacket) ([]byte, error)
	DecodeVoice([]byte) (*VoicePacket, error)
}
