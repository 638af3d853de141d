package session

import (
	"time"

	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/wire"
)

// dispatch applies one decoded control message. The variant set is
// closed; Unknown (and anything else) is reported and skipped so newer
// servers keep working. A non-nil return terminates the session.
func (s *Session) dispatch(msg wire.Message) error {
	switch m := msg.(type) {
	case *wire.Version:
		s.logger.Debug().Str("release", m.Release).Msg("server version")
	case *wire.Ping:
		s.mu.Lock()
		s.lastPong = time.Now()
		s.mu.Unlock()
	case *wire.Reject:
		s.handleReject(m)
	case *wire.ServerSync:
		s.handleSync(m)
	case *wire.ChannelState:
		s.dir.UpsertChannel(m)
	case *wire.ChannelRemove:
		s.dir.RemoveChannel(m.ChannelID)
	case *wire.UserState:
		s.handleUserState(m)
	case *wire.UserRemove:
		s.dir.RemoveUser(m)
	case *wire.TextMessage:
		s.handleText(m)
	case *wire.PermissionDenied:
		ev, err := core.ClassifyDeny(m, s.dir)
		if err != nil {
			return err
		}
		s.notify.EmitDeny(ev)
	case *wire.UDPTunnel:
		pkt, err := s.codec.DecodeVoice(m.Data)
		if err != nil {
			return err
		}
		return s.depack.Dispatch(pkt)
	case *wire.Unknown:
		s.logger.Warn().Uint16("kind", m.RawKind).Int("bytes", len(m.Raw)).Msg("unknown control message")
	default:
		s.logger.Warn().Uint16("kind", msg.Kind()).Msg("unexpected control message")
	}
	return nil
}

func (s *Session) handleReject(m *wire.Reject) {
	s.logger.Warn().Uint32("type", m.Type).Str("reason", m.Reason).Msg("handshake rejected")
	s.notify.EmitReject(&core.RejectEvent{Type: m.Type, Reason: m.Reason})
	s.settle(&RejectError{Type: m.Type, Reason: m.Reason})
	s.shutdown(nil)
}

func (s *Session) handleSync(m *wire.ServerSync) {
	s.mu.Lock()
	if s.phase != PhaseHandshaking {
		s.mu.Unlock()
		s.logger.Warn().Msg("duplicate server sync ignored")
		return
	}
	s.phase = PhaseSynced
	s.maxBandwidth = m.MaxBandwidth
	s.welcomeText = m.WelcomeText
	s.mu.Unlock()

	self, ok := s.dir.User(m.Session)
	if !ok {
		self = s.dir.UpsertUser(&wire.UserState{Session: m.Session})
	}
	s.mu.Lock()
	s.self = self
	s.flags = core.SelfFlags{Mute: self.SelfMute, Deaf: self.SelfDeaf}
	s.mu.Unlock()

	go s.pingLoop()

	s.logger.Info().Uint32("session", uint32(m.Session)).Uint32("max_bandwidth", m.MaxBandwidth).Msg("synced")
	s.notify.EmitConnect(&core.ConnectEvent{WelcomeText: m.WelcomeText, MaxBandwidth: m.MaxBandwidth})
	s.settle(nil)
}

func (s *Session) handleUserState(m *wire.UserState) {
	u := s.dir.UpsertUser(m)

	// Server-side edits of our own flags must not desync the rule table.
	s.mu.Lock()
	if s.self != nil && u == s.self {
		s.flags = core.SelfFlags{Mute: u.SelfMute, Deaf: u.SelfDeaf}
	}
	s.mu.Unlock()
}

func (s *Session) handleText(m *wire.TextMessage) {
	ev := &core.TextMessageEvent{Message: m.Message}
	if m.Actor != nil {
		ev.Sender, _ = s.dir.User(*m.Actor)
	}
	for _, id := range m.Sessions {
		if u, ok := s.dir.User(id); ok {
			ev.TargetUsers = append(ev.TargetUsers, u)
		}
	}
	for _, id := range m.ChannelIDs {
		if c, ok := s.dir.Channel(id); ok {
			ev.TargetChannels = append(ev.TargetChannels, c)
		}
	}
	for _, id := range m.TreeIDs {
		if c, ok := s.dir.Channel(id); ok {
			ev.TargetTrees = append(ev.TargetTrees, c)
		}
	}
	s.notify.EmitMessage(ev)
}
