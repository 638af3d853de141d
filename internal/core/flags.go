package core

// SelfFlags is the client's own mute/deaf pair.
type SelfFlags struct {
	Mute bool
	Deaf bool
}

// FlagChange is a requested change; nil fields are untouched.
type FlagChange struct {
	Mute *bool
	Deaf *bool
}

// ResolveSelfFlags applies the coupling rules between the two flags:
// un-muting forces deaf off, and deafening forces mute on. Muting alone
// and un-deafening alone force nothing. Pure; the caller sends the
// result as the self user-state diff.
func ResolveSelfFlags(cur SelfFlags, want FlagChange) SelfFlags {
	out := cur
	if want.Mute != nil {
		out.Mute = *want.Mute
		if !*want.Mute {
			out.Deaf = false
		}
	}
	if want.Deaf != nil {
		out.Deaf = *want.Deaf
		if *want.Deaf {
			out.Mute = true
		}
	}
	return out
}
