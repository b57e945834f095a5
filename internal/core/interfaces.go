package core

// Frame is an encoded envelope ready for the wire.
type Frame []byte

// SessionID identifies one live duplex connection. It is assigned at
// connection accept time and never reused for the life of that connection.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
