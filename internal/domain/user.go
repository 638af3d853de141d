// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxUsernameLen = 128
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

// SessionID is a server-assigned user key. It is unique only while the
// user stays connected and may be reused by later connections, so it is
// not a stable identity.
type SessionID uint32

// User is a participant as last reported by the server. Updates arrive
// as partial diffs; zero values here only mean "never reported".
type User struct {
	Session   SessionID
	Name      string
	ChannelID ChannelID

	Mute      bool
	Deaf      bool
	Suppress  bool
	SelfMute  bool
	SelfDeaf  bool
	Recording bool

	Comment string
	Texture []byte
	Hash    string

	PluginContext  []byte
	PluginIdentity string

	// OnVoice receives voice packets attributed to this user.
	// Nil means the application does not care about this user's audio.
	OnVoice func(*VoiceDelivery)
}

// NewUser avoids raw literals in the directory and keeps construction obvious.
// A user first seen without a channel belongs to the root channel.
func NewUser(session SessionID) *User {
	return &User{Session: session, ChannelID: RootChannelID}
}

func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
