package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/wire"
)

// Directory is the client's reconciled copy of the server-authoritative
// user and channel sets. The server sends diffs; the directory merges
// them, creating entities on first reference. It is the sole owner of
// the entities; the ordered slices are insertion-ordered views over the
// same set, never independent copies.
type Directory struct {
	mu sync.RWMutex

	users     map[domain.SessionID]*domain.User
	userOrder []*domain.User

	channels     map[domain.ChannelID]*domain.Channel
	channelOrder []*domain.Channel

	notify *Notifier
}

func NewDirectory(notify *Notifier) *Directory {
	return &Directory{
		users:    make(map[domain.SessionID]*domain.User),
		channels: make(map[domain.ChannelID]*domain.Channel),
		notify:   notify,
	}
}

// UpsertUser merges a user-state diff, creating the user on first
// reference. Absent (nil) fields leave the current value unchanged.
func (d *Directory) UpsertUser(st *wire.UserState) *domain.User {
	d.mu.Lock()
	u, ok := d.users[st.Session]
	if !ok {
		u = domain.NewUser(st.Session)
		d.users[st.Session] = u
		d.userOrder = append(d.userOrder, u)
	}

	if st.Name != nil {
		u.Name = *st.Name
	}
	if st.ChannelID != nil {
		u.ChannelID = *st.ChannelID
	}
	if st.Mute != nil {
		u.Mute = *st.Mute
	}
	if st.Deaf != nil {
		u.Deaf = *st.Deaf
	}
	if st.Suppress != nil {
		u.Suppress = *st.Suppress
	}
	if st.SelfMute != nil {
		u.SelfMute = *st.SelfMute
	}
	if st.SelfDeaf != nil {
		u.SelfDeaf = *st.SelfDeaf
	}
	if st.Recording != nil {
		u.Recording = *st.Recording
	}
	if st.Comment != nil {
		u.Comment = *st.Comment
	}
	if st.Texture != nil {
		u.Texture = st.Texture
	}
	if st.Hash != nil {
		u.Hash = *st.Hash
	}
	if st.PluginContext != nil {
		u.PluginContext = st.PluginContext
	}
	if st.PluginIdentity != nil {
		u.PluginIdentity = *st.PluginIdentity
	}
	d.mu.Unlock()

	kind := ChangeUpdated
	if !ok {
		kind = ChangeCreated
		log.Info().Str("module", "core.directory").Uint32("session", uint32(st.Session)).Msg("new user")
	}
	d.notify.EmitUserChange(&UserChangeEvent{Kind: kind, User: u})
	return u
}

// RemoveUser deletes a user on an explicit removal notification. The
// actor, reason and ban flag travel on the event, not the entity.
// Removing an unknown session is a no-op.
func (d *Directory) RemoveUser(rm *wire.UserRemove) {
	d.mu.Lock()
	u, ok := d.users[rm.Session]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.users, rm.Session)
	d.userOrder = removeFromOrder(d.userOrder, u)

	var actor *domain.User
	if rm.Actor != nil {
		actor = d.users[*rm.Actor]
	}
	d.mu.Unlock()

	log.Info().Str("module", "core.directory").Uint32("session", uint32(rm.Session)).Bool("ban", rm.Ban).Msg("user removed")
	d.notify.EmitUserChange(&UserChangeEvent{
		Kind:   ChangeRemoved,
		User:   u,
		Actor:  actor,
		Reason: rm.Reason,
		Banned: rm.Ban,
	})
}

// UpsertChannel merges a channel-state diff, creating the channel on
// first reference. Link removals are applied before the rest of the
// diff, and each removal also drops the reverse link if the other side
// has one.
func (d *Directory) UpsertChannel(st *wire.ChannelState) *domain.Channel {
	d.mu.Lock()
	c, ok := d.channels[st.ChannelID]
	if !ok {
		c = domain.NewChannel(st.ChannelID)
		d.channels[st.ChannelID] = c
		d.channelOrder = append(d.channelOrder, c)
	}

	for _, id := range st.LinksRemove {
		delete(c.Links, id)
		if other, ok := d.channels[id]; ok {
			delete(other.Links, c.ID)
		}
	}
	for _, id := range st.LinksAdd {
		c.Links[id] = struct{}{}
		if other, ok := d.channels[id]; ok {
			other.Links[c.ID] = struct{}{}
		}
	}

	if st.Parent != nil {
		c.ParentID = *st.Parent
	}
	if st.Name != nil {
		c.Name = *st.Name
	}
	if st.Description != nil {
		c.Description = *st.Description
	}
	if st.Temporary != nil {
		c.Temporary = *st.Temporary
	}
	d.mu.Unlock()

	kind := ChangeUpdated
	if !ok {
		kind = ChangeCreated
		log.Info().Str("module", "core.directory").Uint32("channel", uint32(st.ChannelID)).Msg("new channel")
	}
	d.notify.EmitChannelChange(&ChannelChangeEvent{Kind: kind, Channel: c})
	return c
}

// RemoveChannel deletes a channel; removing an unknown id is a no-op.
func (d *Directory) RemoveChannel(id domain.ChannelID) {
	d.mu.Lock()
	c, ok := d.channels[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.channels, id)
	d.channelOrder = removeFromOrder(d.channelOrder, c)
	for _, other := range d.channelOrder {
		delete(other.Links, id)
	}
	d.mu.Unlock()

	log.Info().Str("module", "core.directory").Uint32("channel", uint32(id)).Msg("channel removed")
	d.notify.EmitChannelChange(&ChannelChangeEvent{Kind: ChangeRemoved, Channel: c})
}

func (d *Directory) User(session domain.SessionID) (*domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[session]
	return u, ok
}

func (d *Directory) Channel(id domain.ChannelID) (*domain.Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.channels[id]
	return c, ok
}

func (d *Directory) ChannelByName(name string) (*domain.Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.channelOrder {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Users returns the users in first-seen order.
func (d *Directory) Users() []*domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*domain.User, len(d.userOrder))
	copy(out, d.userOrder)
	return out
}

// Channels returns the channels in first-seen order.
func (d *Directory) Channels() []*domain.Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*domain.Channel, len(d.channelOrder))
	copy(out, d.channelOrder)
	return out
}

func removeFromOrder[T comparable](order []T, v T) []T {
	for i, e := range order {
		if e == v {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
