package session

import (
	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// The command surface: fire-and-forget partial user-state diffs for the
// self session. Each returns only the transport write error, never a
// server verdict; denials come back later as events.

func (s *Session) SetSelfMute(mute bool) error {
	return s.sendSelfFlags(core.FlagChange{Mute: &mute})
}

func (s *Session) SetSelfDeaf(deaf bool) error {
	return s.sendSelfFlags(core.FlagChange{Deaf: &deaf})
}

// sendSelfFlags runs the coupling rule table before anything touches
// the wire, so the server only ever sees consistent flag pairs.
func (s *Session) sendSelfFlags(change core.FlagChange) error {
	s.mu.Lock()
	next := core.ResolveSelfFlags(s.flags, change)
	s.flags = next
	session := s.selfSessionLocked()
	s.mu.Unlock()

	return s.mux.WriteMessage(&wire.UserState{
		Session:  session,
		SelfMute: &next.Mute,
		SelfDeaf: &next.Deaf,
	})
}

func (s *Session) SetComment(comment string) error {
	return s.sendSelfState(&wire.UserState{Comment: &comment})
}

func (s *Session) SetTexture(texture []byte) error {
	return s.sendSelfState(&wire.UserState{Texture: texture})
}

func (s *Session) SetRecording(recording bool) error {
	return s.sendSelfState(&wire.UserState{Recording: &recording})
}

func (s *Session) SetPluginContext(ctx []byte) error {
	return s.sendSelfState(&wire.UserState{PluginContext: ctx})
}

func (s *Session) SetPluginIdentity(identity string) error {
	return s.sendSelfState(&wire.UserState{PluginIdentity: &identity})
}

func (s *Session) sendSelfState(st *wire.UserState) error {
	s.mu.Lock()
	st.Session = s.selfSessionLocked()
	s.mu.Unlock()
	return s.mux.WriteMessage(st)
}

func (s *Session) selfSessionLocked() domain.SessionID {
	if s.self != nil {
		return s.self.Session
	}
	return 0
}

// SendText sends a text message to any mix of users, channels and
// channel subtrees.
func (s *Session) SendText(message string, users []domain.SessionID, channels, trees []domain.ChannelID) error {
	return s.mux.WriteMessage(&wire.TextMessage{
		Sessions:   users,
		ChannelIDs: channels,
		TreeIDs:    trees,
		Message:    message,
	})
}

// CreateVoiceStream opens one outgoing transmission toward the given
// target. The returned stream accepts PCM and must be closed to mark
// the transmission boundary.
func (s *Session) CreateVoiceStream(target domain.VoiceTarget, channels int) (*core.OutStream, error) {
	return core.NewOutStream(s.cfg.Provider, s.mux, target, channels)
}

// Channel looks a channel up by name in the directory.
func (s *Session) Channel(name string) (*domain.Channel, bool) {
	return s.dir.ChannelByName(name)
}
