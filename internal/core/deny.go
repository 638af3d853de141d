package core

import (
	"fmt"

	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// ClassifyDeny maps a raw permission-denied payload to a typed denial,
// resolving the user and channel references it carries. The set of
// denial kinds is part of the protocol contract, so an unrecognized
// discriminant is a protocol violation and terminates the session.
func ClassifyDeny(msg *wire.PermissionDenied, dir *Directory) (*domain.DenyEvent, error) {
	t := domain.DenyType(msg.Type)
	ev := &domain.DenyEvent{Type: t}

	switch t {
	case domain.DenyPermission:
		ev.Permission = msg.Permission
		if msg.Session != nil {
			ev.User, _ = dir.User(*msg.Session)
		}
		if msg.ChannelID != nil {
			ev.Channel, _ = dir.Channel(*msg.ChannelID)
		}
	case domain.DenyChannelName, domain.DenyUserName:
		ev.Name = msg.Name
	case domain.DenyText, domain.DenySuperUser, domain.DenyTextTooLong,
		domain.DenyTemporaryChannel, domain.DenyMissingCertificate,
		domain.DenyChannelFull, domain.DenyNestingLimit:
		// type alone is the payload
	default:
		return nil, fmt.Errorf("unknown deny discriminant %d", msg.Type)
	}
	return ev, nil
}
