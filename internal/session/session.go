// Package session drives one client connection: the handshake state
// machine, the keepalive, the public command surface and the dispatch
// of everything the server sends. A Session is single-shot; once
// disconnected it cannot be reused, reconnecting means a new Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// Phase is the connection lifecycle state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseHandshaking
	PhaseSynced
	PhaseDisconnected
)

const defaultPingInterval = 10 * time.Second

// protocolVersion is the wire protocol revision this client speaks,
// packed major.minor.patch.
const protocolVersion uint32 = 1<<16 | 5<<8 | 0

var (
	ErrDisconnected = errors.New("session disconnected")
	ErrNotIdle      = errors.New("session already used")
)

// RejectError carries the server's handshake refusal out of Connect.
type RejectError struct {
	Type   uint32
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("server rejected connection (%d): %s", e.Type, e.Reason)
}

// Config is the client identity and capability declaration. A Config
// should not be shared between Session instances.
type Config struct {
	Username string
	Password string
	Tokens   []string

	Release   string
	OS        string
	OSVersion string

	// Provider is optional; without one, outgoing voice is discarded.
	Provider core.CodecProvider

	PingInterval time.Duration
}

// Session is one client connection to one server.
type Session struct {
	cfg    Config
	codec  wire.Codec
	notify *core.Notifier
	dir    *core.Directory
	depack *core.Depacketizer
	mux    *mux
	logger zerolog.Logger

	mu           sync.Mutex
	phase        Phase
	self         *domain.User
	maxBandwidth uint32
	welcomeText  string
	flags        core.SelfFlags
	lastPong     time.Time

	result     chan error
	settleOnce sync.Once
	done       chan struct{}
	closeOnce  sync.Once
}

// New validates the config and builds an idle session. A username is
// not optional; refusing to construct beats failing mid-handshake.
func New(cfg Config, codec wire.Codec) (*Session, error) {
	if err := domain.ValidateUsername(cfg.Username); err != nil {
		return nil, err
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	notify := core.NewNotifier()
	dir := core.NewDirectory(notify)
	s := &Session{
		cfg:    cfg,
		codec:  codec,
		notify: notify,
		dir:    dir,
		depack: core.NewDepacketizer(dir),
		mux:    newMux(codec),
		logger: log.With().Str("module", "session").Str("sid", uuid.NewString()).Logger(),
		result: make(chan error, 1),
		done:   make(chan struct{}),
	}
	return s, nil
}

// Attach subscribes a listener to session events.
func (s *Session) Attach(l core.Listener) core.Detacher {
	return s.notify.Attach(l)
}

// Directory exposes the reconciled user/channel state.
func (s *Session) Directory() *core.Directory { return s.dir }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Self returns the user entity representing this client, once synced.
func (s *Session) Self() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) WelcomeText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.welcomeText
}

func (s *Session) MaxBandwidth() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxBandwidth
}

// LastPong reports when the server last answered a keepalive. Zero
// until the first answer arrives.
func (s *Session) LastPong() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPong
}

// Connect binds the control transport, runs the handshake and blocks
// until the session is synced, rejected or failed, whichever settles
// first. The control stream keeps being served after Connect returns.
func (s *Session) Connect(ctx context.Context, control core.Transport) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.phase = PhaseHandshaking
	s.mu.Unlock()

	if err := s.mux.BindControl(control); err != nil {
		s.shutdown(err)
		return err
	}

	opus := false
	if s.cfg.Provider != nil {
		for _, c := range s.cfg.Provider.Codecs() {
			if c == domain.CodecOpus {
				opus = true
			}
		}
	}
	if err := s.mux.WriteMessage(&wire.Version{
		Version:   protocolVersion,
		Release:   s.cfg.Release,
		OS:        s.cfg.OS,
		OSVersion: s.cfg.OSVersion,
	}); err != nil {
		s.shutdown(err)
		return err
	}
	if err := s.mux.WriteMessage(&wire.Authenticate{
		Username:      s.cfg.Username,
		Password:      s.cfg.Password,
		Tokens:        s.cfg.Tokens,
		OpusSupported: opus,
	}); err != nil {
		s.shutdown(err)
		return err
	}
	s.logger.Info().Str("username", s.cfg.Username).Msg("handshake started")

	go s.controlLoop(control)

	select {
	case <-ctx.Done():
		s.shutdown(ctx.Err())
		return ctx.Err()
	case err := <-s.result:
		return err
	}
}

// BindVoice attaches the dedicated voice transport and starts serving
// it. Without this, voice tunnels over the control channel.
func (s *Session) BindVoice(t core.Transport) error {
	if err := s.mux.BindVoice(t); err != nil {
		return err
	}
	go s.voiceLoop(t)
	return nil
}

// Disconnect ends the session. Safe to call at any phase, any number
// of times.
func (s *Session) Disconnect() {
	s.shutdown(nil)
}

func (s *Session) controlLoop(t core.Transport) {
	for {
		frame, err := t.ReadPacket()
		if err != nil {
			s.shutdown(err)
			return
		}
		msg, err := s.codec.Decode(frame)
		if err != nil {
			// Garbled control data leaves unknown state behind it.
			s.shutdown(fmt.Errorf("decode control frame: %w", err))
			return
		}
		if err := s.dispatch(msg); err != nil {
			s.shutdown(err)
			return
		}
	}
}

// voiceLoop serves the lossy transport. Any transport error here is a
// hard session failure.
func (s *Session) voiceLoop(t core.Transport) {
	for {
		frame, err := t.ReadPacket()
		if err != nil {
			s.shutdown(err)
			return
		}
		pkt, err := s.codec.DecodeVoice(frame)
		if err != nil {
			s.shutdown(fmt.Errorf("decode voice packet: %w", err))
			return
		}
		if err := s.depack.Dispatch(pkt); err != nil {
			s.shutdown(err)
			return
		}
	}
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.mux.WriteMessage(&wire.Ping{Timestamp: time.Now().Unix()}); err != nil {
				s.logger.Error().Err(err).Msg("keepalive write failed")
				s.shutdown(err)
				return
			}
		}
	}
}

// settle resolves the Connect result exactly once; later outcomes are
// no-ops.
func (s *Session) settle(err error) {
	s.settleOnce.Do(func() {
		s.result <- err
	})
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.phase = PhaseDisconnected
		s.mu.Unlock()

		close(s.done)
		s.mux.Close()

		settleErr := err
		if settleErr == nil {
			settleErr = ErrDisconnected
		}
		s.settle(settleErr)

		if err != nil {
			s.logger.Error().Err(err).Msg("session terminated")
		} else {
			s.logger.Info().Msg("session closed")
		}
		s.notify.EmitDisconnect(&core.DisconnectEvent{Err: err})
	})
}
