package domain

type ChannelID uint32

// RootChannelID always exists once the session is synced; users with no
// reported channel land here.
const RootChannelID ChannelID = 0

// Channel is a node in the server's channel tree.
type Channel struct {
	ID          ChannelID
	Name        string
	ParentID    ChannelID
	Temporary   bool
	Description string

	// Links holds channels whose audio is audible from this one. The
	// relation is symmetric; the directory keeps both sides in sync.
	Links map[ChannelID]struct{}
}

func NewChannel(id ChannelID) *Channel {
	return &Channel{ID: id, Links: make(map[ChannelID]struct{})}
}

func (c *Channel) IsRoot() bool { return c.ID == RootChannelID }

func (c *Channel) Linked(id ChannelID) bool {
	_, ok := c.Links[id]
	return ok
}
