package core

// Frame is a raw binary payload.
type Frame []byte

// Transport abstracts an already-connected duplex packet channel to the
// server. The engine performs no dialing, TLS or address resolution.
// Owned by the binder; the binder must Close() it.
type Transport interface {
	// ReadPacket blocks until the next whole packet arrives.
	ReadPacket() (Frame, error)
	WritePacket(Frame) error
	Close() error
}
