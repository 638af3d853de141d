package core

import (
	"sync"

	"github.com/ebonn/mumlink/internal/domain"
)

// ChangeKind says what happened to a directory entity.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
)

// ConnectEvent fires exactly once, when the session reaches the synced
// phase.
type ConnectEvent struct {
	WelcomeText  string
	MaxBandwidth uint32
}

// RejectEvent is the server refusing the handshake.
type RejectEvent struct {
	Type   uint32
	Reason string
}

type DisconnectEvent struct {
	Err error
}

// TextMessageEvent is a received text message with resolved targets.
type TextMessageEvent struct {
	Sender         *domain.User
	Message        string
	TargetUsers    []*domain.User
	TargetChannels []*domain.Channel
	TargetTrees    []*domain.Channel
}

// UserChangeEvent reports a directory user created, updated or removed.
// Actor, Reason and Banned are only set on removal.
type UserChangeEvent struct {
	Kind   ChangeKind
	User   *domain.User
	Actor  *domain.User
	Reason string
	Banned bool
}

type ChannelChangeEvent struct {
	Kind    ChangeKind
	Channel *domain.Channel
}

// Listener receives session events. Notifications fire in the order the
// corresponding state changes were applied.
type Listener interface {
	OnConnect(*ConnectEvent)
	OnReject(*RejectEvent)
	OnDisconnect(*DisconnectEvent)
	OnDeny(*domain.DenyEvent)
	OnMessage(*TextMessageEvent)
	OnUserChange(*UserChangeEvent)
	OnChannelChange(*ChannelChangeEvent)
}

// Handlers implements Listener from optional funcs, for callers that
// only care about a few events.
type Handlers struct {
	Connect       func(*ConnectEvent)
	Reject        func(*RejectEvent)
	Disconnect    func(*DisconnectEvent)
	Deny          func(*domain.DenyEvent)
	Message       func(*TextMessageEvent)
	UserChange    func(*UserChangeEvent)
	ChannelChange func(*ChannelChangeEvent)
}

func (h Handlers) OnConnect(e *ConnectEvent) {
	if h.Connect != nil {
		h.Connect(e)
	}
}

func (h Handlers) OnReject(e *RejectEvent) {
	if h.Reject != nil {
		h.Reject(e)
	}
}

func (h Handlers) OnDisconnect(e *DisconnectEvent) {
	if h.Disconnect != nil {
		h.Disconnect(e)
	}
}

func (h Handlers) OnDeny(e *domain.DenyEvent) {
	if h.Deny != nil {
		h.Deny(e)
	}
}

func (h Handlers) OnMessage(e *TextMessageEvent) {
	if h.Message != nil {
		h.Message(e)
	}
}

func (h Handlers) OnUserChange(e *UserChangeEvent) {
	if h.UserChange != nil {
		h.UserChange(e)
	}
}

func (h Handlers) OnChannelChange(e *ChannelChangeEvent) {
	if h.ChannelChange != nil {
		h.ChannelChange(e)
	}
}

// Detacher removes a previously attached listener.
type Detacher interface {
	Detach()
}

// Notifier fans session events out to attached listeners, in attach
// order. It replaces implicit event-emitter dispatch with an explicit
// subscription surface.
type Notifier struct {
	mu        sync.RWMutex
	nextID    int
	listeners []attached
}

type attached struct {
	id int
	l  Listener
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Attach(l Listener) Detacher {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, attached{id: id, l: l})
	return detacher{n: n, id: id}
}

type detacher struct {
	n  *Notifier
	id int
}

func (d detacher) Detach() {
	d.n.mu.Lock()
	defer d.n.mu.Unlock()
	for i, a := range d.n.listeners {
		if a.id == d.id {
			d.n.listeners = append(d.n.listeners[:i], d.n.listeners[i+1:]...)
			return
		}
	}
}

func (n *Notifier) snapshot() []attached {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]attached, len(n.listeners))
	copy(out, n.listeners)
	return out
}

func (n *Notifier) EmitConnect(e *ConnectEvent) {
	for _, a := range n.snapshot() {
		a.l.OnConnect(e)
	}
}

func (n *Notifier) EmitReject(e *RejectEvent) {
	for _, a := range n.snapshot() {
		a.l.OnReject(e)
	}
}

func (n *Notifier) EmitDisconnect(e *DisconnectEvent) {
	for _, a := range n.snapshot() {
		a.l.OnDisconnect(e)
	}
}

func (n *Notifier) EmitDeny(e *domain.DenyEvent) {
	for _, a := range n.snapshot() {
		a.l.OnDeny(e)
	}
}

func (n *Notifier) EmitMessage(e *TextMessageEvent) {
	for _, a := range n.snapshot() {
		a.l.OnMessage(e)
	}
}

func (n *Notifier) EmitUserChange(e *UserChangeEvent) {
	for _, a := range n.snapshot() {
		a.l.OnUserChange(e)
	}
}

func (n *Notifier) EmitChannelChange(e *ChannelChangeEvent) {
	for _, a := range n.snapshot() {
		a.l.OnChannelChange(e)
	}
}
