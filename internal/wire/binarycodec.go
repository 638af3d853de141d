package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/ebonn/mumlink/internal/domain"
)

// BinaryCodec is the built-in protocol codec: a compact binary layout
// with a 16-bit kind prefix and presence bitmaps for partial diffs.
// The engine treats it like any other Codec implementation.
type BinaryCodec struct{}

func NewBinaryCodec() *BinaryCodec { return &BinaryCodec{} }

func (BinaryCodec) Encode(msg Message) ([]byte, error) {
	e := &encBuf{}
	e.u16(msg.Kind())

	switch m := msg.(type) {
	case *Version:
		e.u32(m.Version)
		e.str(m.Release)
		e.str(m.OS)
		e.str(m.OSVersion)
	case *Authenticate:
		e.str(m.Username)
		e.str(m.Password)
		e.varint(uint64(len(m.Tokens)))
		for _, t := range m.Tokens {
			e.str(t)
		}
		e.varint(uint64(len(m.CeltVers)))
		for _, v := range m.CeltVers {
			e.u32(uint32(v))
		}
		e.boolean(m.OpusSupported)
	case *Ping:
		e.u64(uint64(m.Timestamp))
	case *Reject:
		e.u32(m.Type)
		e.str(m.Reason)
	case *ServerSync:
		e.varint(uint64(m.Session))
		e.u32(m.MaxBandwidth)
		e.str(m.WelcomeText)
		e.u64(m.Permissions)
	case *ChannelState:
		encodeChannelState(e, m)
	case *ChannelRemove:
		e.varint(uint64(m.ChannelID))
	case *UserState:
		encodeUserState(e, m)
	case *UserRemove:
		e.varint(uint64(m.Session))
		var flags byte
		if m.Actor != nil {
			flags |= 1
		}
		e.b(flags)
		if m.Actor != nil {
			e.varint(uint64(*m.Actor))
		}
		e.str(m.Reason)
		e.boolean(m.Ban)
	case *TextMessage:
		var flags byte
		if m.Actor != nil {
			flags |= 1
		}
		e.b(flags)
		if m.Actor != nil {
			e.varint(uint64(*m.Actor))
		}
		e.sessions(m.Sessions)
		e.channels(m.ChannelIDs)
		e.channels(m.TreeIDs)
		e.str(m.Message)
	case *PermissionDenied:
		e.u32(m.Type)
		e.u32(m.Permission)
		var flags byte
		if m.ChannelID != nil {
			flags |= 1
		}
		if m.Session != nil {
			flags |= 2
		}
		e.b(flags)
		if m.ChannelID != nil {
			e.varint(uint64(*m.ChannelID))
		}
		if m.Session != nil {
			e.varint(uint64(*m.Session))
		}
		e.str(m.Reason)
		e.str(m.Name)
	case *UDPTunnel:
		e.raw(m.Data)
	default:
		return nil, fmt.Errorf("cannot encode message kind %d", msg.Kind())
	}
	return e.bytes(), nil
}

func (BinaryCodec) Decode(frame []byte) (Message, error) {
	if len(frame) < 2 {
		return nil, ErrFrameShort
	}
	kind := binary.BigEndian.Uint16(frame[:2])
	d := &decBuf{rem: frame[2:]}

	var msg Message
	switch kind {
	case KindVersion:
		m := &Version{Version: d.u32(), Release: d.str(), OS: d.str(), OSVersion: d.str()}
		msg = m
	case KindAuthenticate:
		m := &Authenticate{Username: d.str(), Password: d.str()}
		for n := d.varint(); n > 0 && d.err == nil; n-- {
			m.Tokens = append(m.Tokens, d.str())
		}
		for n := d.varint(); n > 0 && d.err == nil; n-- {
			m.CeltVers = append(m.CeltVers, int32(d.u32()))
		}
		m.OpusSupported = d.boolean()
		msg = m
	case KindPing:
		msg = &Ping{Timestamp: int64(d.u64())}
	case KindReject:
		msg = &Reject{Type: d.u32(), Reason: d.str()}
	case KindServerSync:
		msg = &ServerSync{
			Session:      domain.SessionID(d.varint()),
			MaxBandwidth: d.u32(),
			WelcomeText:  d.str(),
			Permissions:  d.u64(),
		}
	case KindChannelState:
		msg = decodeChannelState(d)
	case KindChannelRemove:
		msg = &ChannelRemove{ChannelID: domain.ChannelID(d.varint())}
	case KindUserState:
		msg = decodeUserState(d)
	case KindUserRemove:
		m := &UserRemove{Session: domain.SessionID(d.varint())}
		if d.b()&1 != 0 {
			actor := domain.SessionID(d.varint())
			m.Actor = &actor
		}
		m.Reason = d.str()
		m.Ban = d.boolean()
		msg = m
	case KindTextMessage:
		m := &TextMessage{}
		if d.b()&1 != 0 {
			actor := domain.SessionID(d.varint())
			m.Actor = &actor
		}
		m.Sessions = d.sessions()
		m.ChannelIDs = d.channels()
		m.TreeIDs = d.channels()
		m.Message = d.str()
		msg = m
	case KindPermissionDenied:
		m := &PermissionDenied{Type: d.u32(), Permission: d.u32()}
		flags := d.b()
		if flags&1 != 0 {
			id := domain.ChannelID(d.varint())
			m.ChannelID = &id
		}
		if flags&2 != 0 {
			sess := domain.SessionID(d.varint())
			m.Session = &sess
		}
		m.Reason = d.str()
		m.Name = d.str()
		msg = m
	case KindUDPTunnel:
		msg = &UDPTunnel{Data: d.rest()}
	default:
		return &Unknown{RawKind: kind, Raw: frame[2:]}, nil
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode kind %d: %w", kind, d.err)
	}
	return msg, nil
}

func (BinaryCodec) EncodeVoice(p *VoicePacket) ([]byte, error) {
	return EncodeVoicePacket(p), nil
}

func (BinaryCodec) DecodeVoice(data []byte) (*VoicePacket, error) {
	return DecodeVoicePacket(data)
}

// Presence bits for the ChannelState diff bitmap.
const (
	chHasParent = 1 << iota
	chHasName
	chHasDescription
	chHasTemporary
)

func encodeChannelState(e *encBuf, m *ChannelState) {
	e.varint(uint64(m.ChannelID))
	var flags uint16
	if m.Parent != nil {
		flags |= chHasParent
	}
	if m.Name != nil {
		flags |= chHasName
	}
	if m.Description != nil {
		flags |= chHasDescription
	}
	if m.Temporary != nil {
		flags |= chHasTemporary
	}
	e.u16(flags)
	if m.Parent != nil {
		e.varint(uint64(*m.Parent))
	}
	if m.Name != nil {
		e.str(*m.Name)
	}
	if m.Description != nil {
		e.str(*m.Description)
	}
	if m.Temporary != nil {
		e.boolean(*m.Temporary)
	}
	e.channels(m.LinksAdd)
	e.channels(m.LinksRemove)
}

func decodeChannelState(d *decBuf) *ChannelState {
	m := &ChannelState{ChannelID: domain.ChannelID(d.varint())}
	flags := d.u16()
	if flags&chHasParent != 0 {
		id := domain.ChannelID(d.varint())
		m.Parent = &id
	}
	if flags&chHasName != 0 {
		s := d.str()
		m.Name = &s
	}
	if flags&chHasDescription != 0 {
		s := d.str()
		m.Description = &s
	}
	if flags&chHasTemporary != 0 {
		b := d.boolean()
		m.Temporary = &b
	}
	m.LinksAdd = d.channels()
	m.LinksRemove = d.channels()
	return m
}

// Presence bits for the UserState diff bitmap.
const (
	usHasActor = 1 << iota
	usHasName
	usHasChannel
	usHasMute
	usHasDeaf
	usHasSuppress
	usHasSelfMute
	usHasSelfDeaf
	usHasRecording
	usHasComment
	usHasTexture
	usHasHash
	usHasPluginContext
	usHasPluginIdentity
)

func encodeUserState(e *encBuf, m *UserState) {
	e.varint(uint64(m.Session))
	var flags uint16
	if m.Actor != nil {
		flags |= usHasActor
	}
	if m.Name != nil {
		flags |= usHasName
	}
	if m.ChannelID != nil {
		flags |= usHasChannel
	}
	if m.Mute != nil {
		flags |= usHasMute
	}
	if m.Deaf != nil {
		flags |= usHasDeaf
	}
	if m.Suppress != nil {
		flags |= usHasSuppress
	}
	if m.SelfMute != nil {
		flags |= usHasSelfMute
	}
	if m.SelfDeaf != nil {
		flags |= usHasSelfDeaf
	}
	if m.Recording != nil {
		flags |= usHasRecording
	}
	if m.Comment != nil {
		flags |= usHasComment
	}
	if m.Texture != nil {
		flags |= usHasTexture
	}
	if m.Hash != nil {
		flags |= usHasHash
	}
	if m.PluginContext != nil {
		flags |= usHasPluginContext
	}
	if m.PluginIdentity != nil {
		flags |= usHasPluginIdentity
	}
	e.u16(flags)
	if m.Actor != nil {
		e.varint(uint64(*m.Actor))
	}
	if m.Name != nil {
		e.str(*m.Name)
	}
	if m.ChannelID != nil {
		e.varint(uint64(*m.ChannelID))
	}
	if m.Mute != nil {
		e.boolean(*m.Mute)
	}
	if m.Deaf != nil {
		e.boolean(*m.Deaf)
	}
	if m.Suppress != nil {
		e.boolean(*m.Suppress)
	}
	if m.SelfMute != nil {
		e.boolean(*m.SelfMute)
	}
	if m.SelfDeaf != nil {
		e.boolean(*m.SelfDeaf)
	}
	if m.Recording != nil {
		e.boolean(*m.Recording)
	}
	if m.Comment != nil {
		e.str(*m.Comment)
	}
	if m.Texture != nil {
		e.blob(m.Texture)
	}
	if m.Hash != nil {
		e.str(*m.Hash)
	}
	if m.PluginContext != nil {
		e.blob(m.PluginContext)
	}
	if m.PluginIdentity != nil {
		e.str(*m.PluginIdentity)
	}
}

func decodeUserState(d *decBuf) *UserState {
	m := &UserState{Session: domain.SessionID(d.varint())}
	flags := d.u16()
	if flags&usHasActor != 0 {
		v := domain.SessionID(d.varint())
		m.Actor = &v
	}
	if flags&usHasName != 0 {
		v := d.str()
		m.Name = &v
	}
	if flags&usHasChannel != 0 {
		v := domain.ChannelID(d.varint())
		m.ChannelID = &v
	}
	if flags&usHasMute != 0 {
		v := d.boolean()
		m.Mute = &v
	}
	if flags&usHasDeaf != 0 {
		v := d.boolean()
		m.Deaf = &v
	}
	if flags&usHasSuppress != 0 {
		v := d.boolean()
		m.Suppress = &v
	}
	if flags&usHasSelfMute != 0 {
		v := d.boolean()
		m.SelfMute = &v
	}
	if flags&usHasSelfDeaf != 0 {
		v := d.boolean()
		m.SelfDeaf = &v
	}
	if flags&usHasRecording != 0 {
		v := d.boolean()
		m.Recording = &v
	}
	if flags&usHasComment != 0 {
		v := d.str()
		m.Comment = &v
	}
	if flags&usHasTexture != 0 {
		m.Texture = d.blob()
	}
	if flags&usHasHash != 0 {
		v := d.str()
		m.Hash = &v
	}
	if flags&usHasPluginContext != 0 {
		m.PluginContext = d.blob()
	}
	if flags&usHasPluginIdentity != 0 {
		v := d.str()
		m.PluginIdentity = &v
	}
	return m
}
