package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// fakeTransport is an in-memory packet channel: the test feeds inbound
// frames and inspects what the session wrote.
type fakeTransport struct {
	in chan core.Frame

	mu     sync.Mutex
	writes []core.Frame

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan core.Frame, 64),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadPacket() (core.Frame, error) {
	select {
	case f, ok := <-t.in:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-t.closed:
		return nil, io.ErrClosedPipe
	}
}

func (t *fakeTransport) WritePacket(f core.Frame) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, f)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) written() []core.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Frame, len(t.writes))
	copy(out, t.writes)
	return out
}

// stubCodec stores messages in a table and passes indexes as frames, so
// tests exercise the engine without a real binary layout.
type stubCodec struct {
	mu    sync.Mutex
	ctrl  []wire.Message
	voice []*wire.VoicePacket
}

func (c *stubCodec) Encode(m wire.Message) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, 5)
	frame[0] = 1
	binary.BigEndian.PutUint32(frame[1:], uint32(len(c.ctrl)))
	c.ctrl = append(c.ctrl, m)
	return frame, nil
}

func (c *stubCodec) Decode(f []byte) (wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(f) != 5 || f[0] != 1 {
		return nil, fmt.Errorf("bad control frame")
	}
	idx := binary.BigEndian.Uint32(f[1:])
	if int(idx) >= len(c.ctrl) {
		return nil, fmt.Errorf("bad control frame index")
	}
	return c.ctrl[idx], nil
}

func (c *stubCodec) EncodeVoice(p *wire.VoicePacket) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, 5)
	frame[0] = 2
	binary.BigEndian.PutUint32(frame[1:], uint32(len(c.voice)))
	c.voice = append(c.voice, p)
	return frame, nil
}

func (c *stubCodec) DecodeVoice(f []byte) (*wire.VoicePacket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(f) != 5 || f[0] != 2 {
		return nil, fmt.Errorf("bad voice frame")
	}
	idx := binary.BigEndian.Uint32(f[1:])
	if int(idx) >= len(c.voice) {
		return nil, fmt.Errorf("bad voice frame index")
	}
	return c.voice[idx], nil
}

// push encodes a server-side message and queues it for the session.
func push(t *testing.T, c *stubCodec, tr *fakeTransport, m wire.Message) {
	t.Helper()
	frame, err := c.Encode(m)
	require.NoError(t, err)
	tr.in <- frame
}

type eventLog struct {
	mu          sync.Mutex
	connects    int
	rejects     []*core.RejectEvent
	disconnects []*core.DisconnectEvent
	denies      []*domain.DenyEvent
	messages    []*core.TextMessageEvent
}

func (e *eventLog) listener() core.Handlers {
	return core.Handlers{
		Connect: func(*core.ConnectEvent) {
			e.mu.Lock()
			e.connects++
			e.mu.Unlock()
		},
		Reject: func(ev *core.RejectEvent) {
			e.mu.Lock()
			e.rejects = append(e.rejects, ev)
			e.mu.Unlock()
		},
		Disconnect: func(ev *core.DisconnectEvent) {
			e.mu.Lock()
			e.disconnects = append(e.disconnects, ev)
			e.mu.Unlock()
		},
		Deny: func(ev *domain.DenyEvent) {
			e.mu.Lock()
			e.denies = append(e.denies, ev)
			e.mu.Unlock()
		},
		Message: func(ev *core.TextMessageEvent) {
			e.mu.Lock()
			e.messages = append(e.messages, ev)
			e.mu.Unlock()
		},
	}
}

func (e *eventLog) connectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connects
}

func (e *eventLog) denyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.denies)
}

func (e *eventLog) disconnectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.disconnects)
}

func newTestSession(t *testing.T, cfg Config) (*Session, *stubCodec, *fakeTransport, *eventLog) {
	t.Helper()
	if cfg.Username == "" {
		cfg.Username = "tester"
	}
	codec := &stubCodec{}
	s, err := New(cfg, codec)
	require.NoError(t, err)

	events := &eventLog{}
	s.Attach(events.listener())

	tr := newFakeTransport()
	t.Cleanup(s.Disconnect)
	return s, codec, tr, events
}

// sentMessages decodes everything the session wrote to the control
// transport.
func sentMessages(t *testing.T, c *stubCodec, tr *fakeTransport) []wire.Message {
	t.Helper()
	var out []wire.Message
	for _, f := range tr.written() {
		m, err := c.Decode(f)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestNewRequiresUsername(t *testing.T) {
	_, err := New(Config{}, &stubCodec{})
	require.ErrorIs(t, err, domain.ErrUsernameEmpty)
}

func TestConnectSyncs(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{Username: "alice"})

	push(t, codec, tr, &wire.UserState{Session: 5, Name: strp("alice")})
	push(t, codec, tr, &wire.ServerSync{Session: 5, MaxBandwidth: 72000, WelcomeText: "hi"})

	require.NoError(t, s.Connect(context.Background(), tr))

	assert.Equal(t, PhaseSynced, s.Phase())
	require.NotNil(t, s.Self())
	assert.Equal(t, "alice", s.Self().Name)
	assert.Equal(t, "hi", s.WelcomeText())
	assert.Equal(t, uint32(72000), s.MaxBandwidth())
	assert.Equal(t, 1, events.connectCount())

	sent := sentMessages(t, codec, tr)
	require.GreaterOrEqual(t, len(sent), 2)
	_, ok := sent[0].(*wire.Version)
	assert.True(t, ok, "version announcement goes first")
	auth, ok := sent[1].(*wire.Authenticate)
	require.True(t, ok, "authenticate follows the version")
	assert.Equal(t, "alice", auth.Username)
}

func TestConnectRejected(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})

	push(t, codec, tr, &wire.Reject{Type: 2, Reason: "wrong password"})

	err := s.Connect(context.Background(), tr)
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "wrong password", rej.Reason)

	assert.Equal(t, PhaseDisconnected, s.Phase())
	assert.Equal(t, 0, events.connectCount())
	require.Len(t, events.rejects, 1)
	assert.Equal(t, "wrong password", events.rejects[0].Reason)
}

func TestConnectFirstSettledWins(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})

	// Sync arrives before the (nonsensical) late reject: the session
	// stays connected and the reject only terminates it afterwards.
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	push(t, codec, tr, &wire.Reject{Type: 1, Reason: "late"})

	require.NoError(t, s.Connect(context.Background(), tr))
	assert.Equal(t, 1, events.connectCount())
}

func TestConnectTransportError(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	_ = codec
	close(tr.in)

	err := s.Connect(context.Background(), tr)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, PhaseDisconnected, s.Phase())
}

func TestConnectNotReusable(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	s.Disconnect()
	err := s.Connect(context.Background(), newFakeTransport())
	require.ErrorIs(t, err, ErrNotIdle)
}

func TestConnectBindFailureTerminates(t *testing.T) {
	s, _, tr, events := newTestSession(t, Config{})

	// Occupy the control slot so Connect's own bind must fail.
	require.NoError(t, s.mux.BindControl(newFakeTransport()))

	err := s.Connect(context.Background(), tr)
	require.ErrorIs(t, err, ErrControlBound)
	assert.Equal(t, PhaseDisconnected, s.Phase())
	assert.Equal(t, 1, events.disconnectCount())
}

func TestDisconnectIdempotent(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	s.Disconnect()
	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, 1, events.disconnectCount())
	assert.Equal(t, PhaseDisconnected, s.Phase())
}

func TestUnknownControlMessageTolerated(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	push(t, codec, tr, &wire.Unknown{RawKind: 87, Raw: []byte{1, 2, 3}})
	push(t, codec, tr, &wire.UserState{Session: 9, Name: strp("bob")})

	require.Eventually(t, func() bool {
		_, ok := s.Directory().User(9)
		return ok
	}, time.Second, 5*time.Millisecond, "processing continues past unknown kinds")
	assert.Equal(t, PhaseSynced, s.Phase())
}

func TestDenyDelivered(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})
	push(t, codec, tr, &wire.UserState{Session: 3, Name: strp("carol")})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	push(t, codec, tr, &wire.PermissionDenied{
		Type:       uint32(domain.DenyPermission),
		Permission: 0x4,
		Session:    sessp(3),
	})

	require.Eventually(t, func() bool { return events.denyCount() == 1 }, time.Second, 5*time.Millisecond)
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, domain.DenyPermission, events.denies[0].Type)
	require.NotNil(t, events.denies[0].User)
	assert.Equal(t, "carol", events.denies[0].User.Name)
}

func TestUnknownDenyDiscriminantTerminates(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	push(t, codec, tr, &wire.PermissionDenied{Type: 4242})

	require.Eventually(t, func() bool { return s.Phase() == PhaseDisconnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, events.disconnectCount())
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Error(t, events.disconnects[0].Err)
}

func TestTunneledVoiceRouted(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	push(t, codec, tr, &wire.UserState{Session: 8})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	u, ok := s.Directory().User(8)
	require.True(t, ok)
	var mu sync.Mutex
	var got *domain.VoiceDelivery
	u.OnVoice = func(d *domain.VoiceDelivery) {
		mu.Lock()
		got = d
		mu.Unlock()
	}

	vf, err := codec.EncodeVoice(&wire.VoicePacket{Source: 8, SeqNum: 2, Frames: [][]byte{{0xFF}}})
	require.NoError(t, err)
	push(t, codec, tr, &wire.UDPTunnel{Data: vf})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint32(2), got.SeqNum)
}

func TestVoiceFromUnknownSourceTerminates(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	vf, err := codec.EncodeVoice(&wire.VoicePacket{Source: 777})
	require.NoError(t, err)
	push(t, codec, tr, &wire.UDPTunnel{Data: vf})

	require.Eventually(t, func() bool { return s.Phase() == PhaseDisconnected }, time.Second, 5*time.Millisecond)
}

func TestBindVoiceOnce(t *testing.T) {
	s, _, _, _ := newTestSession(t, Config{})

	require.NoError(t, s.BindVoice(newFakeTransport()))
	err := s.BindVoice(newFakeTransport())
	require.ErrorIs(t, err, ErrVoiceBound)
}

func TestVoiceTransportPreferred(t *testing.T) {
	provider := &dropProvider{}
	s, codec, tr, _ := newTestSession(t, Config{Provider: provider})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	voice := newFakeTransport()
	require.NoError(t, s.BindVoice(voice))

	stream, err := s.CreateVoiceStream(domain.TargetNormal, 1)
	require.NoError(t, err)
	require.NoError(t, stream.WritePCM(make([]float32, 48)))
	require.NoError(t, stream.Close())

	assert.Len(t, voice.written(), 2, "audio and end marker go over the voice transport")
	for _, m := range sentMessages(t, codec, tr) {
		_, tunneled := m.(*wire.UDPTunnel)
		assert.False(t, tunneled, "nothing tunnels while a voice transport is bound")
	}
}

func TestVoiceTunnelFallback(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{Provider: &dropProvider{}})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	stream, err := s.CreateVoiceStream(domain.TargetNormal, 1)
	require.NoError(t, err)
	require.NoError(t, stream.WritePCM(make([]float32, 48)))
	require.NoError(t, stream.Close())

	var tunnels []*wire.UDPTunnel
	for _, m := range sentMessages(t, codec, tr) {
		if tun, ok := m.(*wire.UDPTunnel); ok {
			tunnels = append(tunnels, tun)
		}
	}
	require.Len(t, tunnels, 2, "voice falls back to the control channel")

	pkt, err := codec.DecodeVoice(tunnels[0].Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), pkt.SeqNum)
	end, err := codec.DecodeVoice(tunnels[1].Data)
	require.NoError(t, err)
	assert.True(t, end.End)
}

func TestSelfFlagCommands(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	require.NoError(t, s.SetSelfDeaf(true))
	require.NoError(t, s.SetSelfMute(false))

	var states []*wire.UserState
	for _, m := range sentMessages(t, codec, tr) {
		if st, ok := m.(*wire.UserState); ok {
			states = append(states, st)
		}
	}
	require.Len(t, states, 2)

	require.NotNil(t, states[0].SelfMute)
	assert.True(t, *states[0].SelfMute, "deafening forces mute on")
	assert.True(t, *states[0].SelfDeaf)

	assert.False(t, *states[1].SelfMute)
	assert.False(t, *states[1].SelfDeaf, "un-muting forces deaf off")
}

func TestKeepalivePings(t *testing.T) {
	s, codec, tr, _ := newTestSession(t, Config{PingInterval: 20 * time.Millisecond})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	require.Eventually(t, func() bool {
		for _, m := range sentMessages(t, codec, tr) {
			if _, ok := m.(*wire.Ping); ok {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	s.Disconnect()
	count := len(sentMessages(t, codec, tr))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, len(sentMessages(t, codec, tr)), "keepalive stops after disconnect")
}

func TestTextMessageEvent(t *testing.T) {
	s, codec, tr, events := newTestSession(t, Config{})
	push(t, codec, tr, &wire.UserState{Session: 2, Name: strp("bob")})
	push(t, codec, tr, &wire.ChannelState{ChannelID: 4, Name: strp("general")})
	push(t, codec, tr, &wire.ServerSync{Session: 1})
	require.NoError(t, s.Connect(context.Background(), tr))

	push(t, codec, tr, &wire.TextMessage{
		Actor:      sessp(2),
		ChannelIDs: []domain.ChannelID{4},
		Message:    "hello",
	})

	require.Eventually(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.messages) == 1
	}, time.Second, 5*time.Millisecond)

	events.mu.Lock()
	defer events.mu.Unlock()
	msg := events.messages[0]
	assert.Equal(t, "hello", msg.Message)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "bob", msg.Sender.Name)
	require.Len(t, msg.TargetChannels, 1)
	assert.Equal(t, "general", msg.TargetChannels[0].Name)
}

func strp(s string) *string                       { return &s }
func sessp(id domain.SessionID) *domain.SessionID { return &id }

var errNoEncoder = errors.New("no encoder")

// dropProvider hands out a trivial encoder so voice flows in tests.
type dropProvider struct{}

func (dropProvider) Codecs() []domain.Codec { return []domain.Codec{domain.CodecOpus} }

func (dropProvider) FrameDuration(domain.Codec, []byte) time.Duration {
	return 10 * time.Millisecond
}

func (dropProvider) NewEncoder(domain.Codec, int) (core.FrameEncoder, error) {
	return passEncoder{}, nil
}

func (dropProvider) NewDecoder(*domain.User, domain.Codec) (core.FrameDecoder, error) {
	return nil, errNoEncoder
}

type passEncoder struct{}

func (passEncoder) Encode(pcm []float32) ([]byte, error) { return []byte{byte(len(pcm))}, nil }
func (passEncoder) Close() error                         { return nil }
