package session

import (
	"errors"
	"sync"

	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/wire"
)

var (
	ErrControlBound = errors.New("control transport already bound")
	ErrVoiceBound   = errors.New("voice transport already bound")
	ErrNotBound     = errors.New("control transport not bound")
)

// mux binds the session to its transports: exactly one control stream,
// at most one voice stream, each bindable once. Voice written without a
// bound voice transport rides the control stream in a tunnel envelope;
// the packetizer never knows the difference.
type mux struct {
	codec wire.Codec

	mu      sync.Mutex
	control core.Transport
	voice   core.Transport
}

func newMux(codec wire.Codec) *mux {
	return &mux{codec: codec}
}

func (m *mux) BindControl(t core.Transport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.control != nil {
		return ErrControlBound
	}
	m.control = t
	return nil
}

func (m *mux) BindVoice(t core.Transport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice != nil {
		return ErrVoiceBound
	}
	m.voice = t
	return nil
}

// WriteMessage encodes and sends one control message. The mutex keeps
// frames whole on the stream.
func (m *mux) WriteMessage(msg wire.Message) error {
	data, err := m.codec.Encode(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.control == nil {
		return ErrNotBound
	}
	return m.control.WritePacket(data)
}

// WriteVoice sends a voice packet over the voice transport, or tunnels
// it through the control channel when none is bound.
func (m *mux) WriteVoice(p *wire.VoicePacket) error {
	data, err := m.codec.EncodeVoice(p)
	if err != nil {
		return err
	}

	m.mu.Lock()
	voice := m.voice
	m.mu.Unlock()
	if voice != nil {
		return voice.WritePacket(data)
	}
	return m.WriteMessage(&wire.UDPTunnel{Data: data})
}

func (m *mux) Close() {
	m.mu.Lock()
	control, voice := m.control, m.voice
	m.mu.Unlock()
	if voice != nil {
		_ = voice.Close()
	}
	if control != nil {
		_ = control.Close()
	}
}
