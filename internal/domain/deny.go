package domain

import "fmt"

// DenyType discriminates server-issued permission denials. The numeric
// values are part of the wire contract.
type DenyType uint32

const (
	DenyText               DenyType = 0
	DenyPermission         DenyType = 1
	DenySuperUser          DenyType = 2
	DenyChannelName        DenyType = 3
	DenyTextTooLong        DenyType = 4
	DenyTemporaryChannel   DenyType = 6
	DenyMissingCertificate DenyType = 7
	DenyUserName           DenyType = 8
	DenyChannelFull        DenyType = 9
	DenyNestingLimit       DenyType = 10
)

func (t DenyType) String() string {
	switch t {
	case DenyText:
		return "text"
	case DenyPermission:
		return "permission"
	case DenySuperUser:
		return "superuser"
	case DenyChannelName:
		return "channel-name"
	case DenyTextTooLong:
		return "text-too-long"
	case DenyTemporaryChannel:
		return "temporary-channel"
	case DenyMissingCertificate:
		return "missing-certificate"
	case DenyUserName:
		return "username"
	case DenyChannelFull:
		return "channel-full"
	case DenyNestingLimit:
		return "nesting-limit"
	}
	return fmt.Sprintf("deny(%d)", uint32(t))
}

// DenyEvent is a classified denial. Only the fields meaningful for the
// type are set: Permission carries User, Channel and the permission
// bitmask; ChannelName and UserName carry the rejected Name; the rest
// carry the type alone. A denial is an event, not an error.
type DenyEvent struct {
	Type       DenyType
	User       *User
	Channel    *Channel
	Permission uint32
	Name       string
}
