// Package platform defines the backend contract that the ipc package builds
// typed channels on top of. A backend supplies a raw byte+handle channel
// pair, a one-shot rendezvous server, a shared-memory block type, and a
// multiplexing receiver set. Handle and memory-region values are opaque to
// callers above this package: they are moved around, cloned, and closed, but
// never inspected.
package platform

import "errors"

// ErrWouldBlock is returned by TryRecv when no message is currently queued.
var ErrWouldBlock = errors.New("platform: would block")

// ErrPeerClosed is returned once the peer end of a channel has gone away and
// every already-queued message has been drained.
var ErrPeerClosed = errors.New("platform: peer closed")

// ErrRendezvousNameInvalid is returned by Connect when name does not
// identify a live OneShotServer.
var ErrRendezvousNameInvalid = errors.New("platform: invalid rendezvous name")

// ChannelKind tags a Channel as carrying a sender or a receiver.
type ChannelKind int

const (
	ChannelKindSender ChannelKind = iota
	ChannelKindReceiver
)

// Channel is the tagged {Sender | Receiver} union that the codec appends to
// the outbound side-band when it encounters an embedded endpoint. Exactly
// one of Sender/Receiver is set, per Kind.
type Channel struct {
	Kind     ChannelKind
	Sender   RawSender
	Receiver RawReceiver
}

// SenderChannel wraps a RawSender for transport.
func SenderChannel(s RawSender) Channel { return Channel{Kind: ChannelKindSender, Sender: s} }

// ReceiverChannel wraps a RawReceiver for transport. The receiver is
// consumed: callers must not use it locally again after this call.
func ReceiverChannel(r RawReceiver) Channel { return Channel{Kind: ChannelKindReceiver, Receiver: r} }

// RawSender is a shareable write end. Clone shares the underlying kernel
// handle; the backend closes it only when the last clone is closed.
type RawSender interface {
	Send(payload []byte, channels []Channel, memory []Memory) error
	Clone() RawSender
	Close() error
}

// RawReceiver is a move-only read end.
type RawReceiver interface {
	Recv() (payload []byte, handles []OpaqueHandle, memory []Memory, err error)
	TryRecv() (payload []byte, handles []OpaqueHandle, memory []Memory, err error)
	Close() error
}

// OpaqueHandle is a just-received, not-yet-classified handle. The codec
// classifies it as a sender or a receiver at decode time, based on what the
// field being decoded expects.
type OpaqueHandle interface {
	ToSender() RawSender
	ToReceiver() RawReceiver
}

// Memory is a cloneable view onto a shared-memory region.
type Memory interface {
	Bytes() []byte
	Clone() Memory
	Close() error
}

// SelectResultKind tags a SelectResult.
type SelectResultKind int

const (
	ResultMessageReceived SelectResultKind = iota
	ResultChannelClosed
)

// SelectResult is one element of a ReceiverSet.Select() batch.
type SelectResult struct {
	Kind    SelectResultKind
	ID      uint64
	Payload []byte
	Handles []OpaqueHandle
	Memory  []Memory
}

// ReceiverSet multiplexes a collection of receivers behind one blocking
// Select call. A receiver added to a set is owned by the set thereafter.
type ReceiverSet interface {
	Add(r RawReceiver) (id uint64, err error)
	Select() ([]SelectResult, error)
	Close() error
}

// OneShotServer is a named rendezvous point: Accept blocks until a peer
// Connects, then yields a live receiver and the connecting message in one
// step.
type OneShotServer interface {
	Accept() (RawReceiver, []byte, []OpaqueHandle, []Memory, error)
	Close() error
}

// Backend is the full contract a transport implementation supplies.
type Backend interface {
	// Channel creates a paired RawSender/RawReceiver.
	Channel() (RawSender, RawReceiver, error)

	// Connect opens a sender to a named OneShotServer.
	Connect(name string) (RawSender, error)

	NewReceiverSet() (ReceiverSet, error)

	// NewOneShotServer returns a server and a name suitable for handing to
	// a peer process.
	NewOneShotServer() (OneShotServer, string, error)

	NewSharedMemoryFromBytes(b []byte) (Memory, error)
	NewSharedMemoryFromByte(fill byte, length int) (Memory, error)
}
