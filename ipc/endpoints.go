// Package ipc implements typed, process-to-process channels layered over a
// pluggable platform.Backend: Unix-domain SOCK_SEQPACKET sockets with
// SCM_RIGHTS descriptor passing on Unix-like systems, falling back to an
// in-process backend elsewhere.
package ipc

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// Channel creates a connected pair of typed endpoints over the default
// backend. The pair behaves like an ordered pipe: every Send enqueues one
// message, and Recv dequeues them in order. The sender may be cloned, and
// how many messages can be queued before Send blocks is up to the backend.
func Channel[T any]() (TypedSender[T], TypedReceiver[T], error) {
	s, r, err := defaultBackend.Channel()
	if err != nil {
		return TypedSender[T]{}, TypedReceiver[T]{}, transportErr("channel", err)
	}
	return TypedSender[T]{raw: s}, newTypedReceiver[T](r), nil
}

// ConnectTypedSender dials the rendezvous name published by a
// OneShotServer[T], returning a sender for that channel's message type.
func ConnectTypedSender[T any](name string) (TypedSender[T], error) {
	s, err := defaultBackend.Connect(name)
	if err != nil {
		return TypedSender[T]{}, transportErr("connect", err)
	}
	return TypedSender[T]{raw: s}, nil
}

// TypedSender is the write end of a Channel[T]. It is freely cloneable and
// safe to share across goroutines; every clone sends onto the same
// underlying pipe.
type TypedSender[T any] struct {
	raw platform.RawSender
}

// Send encodes v (recursively transferring any embedded endpoints or
// SharedMemory it finds) and enqueues it for the peer.
func (s TypedSender[T]) Send(v T) error {
	payload, channels, memory, err := encode(v)
	if err != nil {
		return err
	}
	if err := s.raw.Send(payload, channels, memory); err != nil {
		return transportErr("send", err)
	}
	return nil
}

// Clone returns an independent handle to the same pipe.
func (s TypedSender[T]) Clone() TypedSender[T] {
	return TypedSender[T]{raw: s.raw.Clone()}
}

// Close releases this handle. The pipe itself lives until every clone,
// sender or receiver side, has been closed.
func (s TypedSender[T]) Close() error {
	return s.raw.Close()
}

// ToOpaque erases the message type, the same way OpaqueSenderFrom does.
func (s TypedSender[T]) ToOpaque() OpaqueSender {
	return OpaqueSenderFrom(s)
}

func (s TypedSender[T]) ipcEncode(st *encodeState) error {
	st.channels = append(st.channels, platform.SenderChannel(s.raw.Clone()))
	return nil
}

func (s *TypedSender[T]) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	s.raw = h.ToSender()
	return nil
}

// receiverState is the shared backing of a TypedReceiver/OpaqueReceiver. Go
// values are copied by assignment, so move-only discipline can't live on
// the TypedReceiver struct itself (two copies of the same struct must not
// both succeed in receiving); instead every copy points at the same
// receiverState, and consumed is a CAS-guarded, one-shot claim over it.
type receiverState struct {
	raw      platform.RawReceiver
	consumed atomic.Bool
}

func (s *receiverState) consume() error {
	if !s.consumed.CompareAndSwap(false, true) {
		return ErrConsumed
	}
	return nil
}

// checkLive reports ErrConsumed once this state has been claimed by a send
// or a ReceiverSet, so a caller's lingering local copy can't race the new
// owner for the same messages.
func (s *receiverState) checkLive() error {
	if s == nil || s.consumed.Load() {
		return ErrConsumed
	}
	return nil
}

func newTypedReceiver[T any](r platform.RawReceiver) TypedReceiver[T] {
	return TypedReceiver[T]{state: &receiverState{raw: r}}
}

// TypedReceiver is the read end of a Channel[T]. Unlike TypedSender it is
// move-only: once it has been sent down another channel, handed to a
// ReceiverSet, or otherwise consumed, further local use returns ErrConsumed.
type TypedReceiver[T any] struct {
	state *receiverState
}

// Recv blocks for the next message.
func (r TypedReceiver[T]) Recv() (T, error) {
	var zero T
	if err := r.state.checkLive(); err != nil {
		return zero, err
	}
	payload, handles, memory, err := r.state.raw.Recv()
	if err != nil {
		return zero, transportErr("recv", err)
	}
	return decode[T](payload, handles, memory)
}

// TryRecv returns ErrWouldBlock instead of blocking if no message is queued.
func (r TypedReceiver[T]) TryRecv() (T, error) {
	var zero T
	if err := r.state.checkLive(); err != nil {
		return zero, err
	}
	payload, handles, memory, err := r.state.raw.TryRecv()
	if err != nil {
		return zero, transportErr("try-recv", err)
	}
	return decode[T](payload, handles, memory)
}

// Close releases this end of the pipe. Closing an already-consumed receiver
// is a no-op: the new owner is responsible for it now.
func (r TypedReceiver[T]) Close() error {
	if r.state.checkLive() != nil {
		return nil
	}
	return r.state.raw.Close()
}

func (r TypedReceiver[T]) ipcEncode(st *encodeState) error {
	if r.state == nil {
		return ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return err
	}
	st.channels = append(st.channels, platform.ReceiverChannel(r.state.raw))
	return nil
}

func (r *TypedReceiver[T]) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	r.state = &receiverState{raw: h.ToReceiver()}
	return nil
}

// ToOpaque erases the message type. r is consumed, same as OpaqueReceiverFrom.
func (r TypedReceiver[T]) ToOpaque() (OpaqueReceiver, error) {
	return OpaqueReceiverFrom(r)
}

// iterPollInterval bounds how long Iter sleeps between empty TryRecv polls.
// There is no portable way to block on "next message or ctx cancellation"
// without a dedicated reader goroutine, which Iter deliberately avoids.
const iterPollInterval = 1 * time.Millisecond

// Result holds one Iter step: either a received value, or the error that
// ended the sequence.
type Result[T any] struct {
	Value T
	Err   error
}

// Iter adapts r into a Go 1.23 range-over-func sequence: ranging over it
// yields a Result for every successfully received message, stopping when
// the peer closes, ctx is done, or TryRecv reports an error other than
// ErrWouldBlock (that one error is yielded once, then the sequence ends).
// ErrWouldBlock itself is never yielded — it just means "poll again".
func (r TypedReceiver[T]) Iter(ctx context.Context) iter.Seq[Result[T]] {
	return func(yield func(Result[T]) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			v, err := r.TryRecv()
			switch {
			case err == nil:
				if !yield(Result[T]{Value: v}) {
					return
				}
			case errors.Is(err, ErrWouldBlock):
				select {
				case <-ctx.Done():
					return
				case <-time.After(iterPollInterval):
				}
			case errors.Is(err, ErrPeerClosed):
				return
			default:
				yield(Result[T]{Err: err})
				return
			}
		}
	}
}

// BytesChannel creates a connected pair of raw byte-message endpoints, for
// callers that already have their own framing and don't need the generic
// encoder.
func BytesChannel() (BytesSender, BytesReceiver, error) {
	s, r, err := defaultBackend.Channel()
	if err != nil {
		return BytesSender{}, BytesReceiver{}, transportErr("bytes-channel", err)
	}
	return BytesSender{raw: s}, newBytesReceiver(r), nil
}

// ConnectBytesSender dials a rendezvous name expecting raw byte messages.
func ConnectBytesSender(name string) (BytesSender, error) {
	s, err := defaultBackend.Connect(name)
	if err != nil {
		return BytesSender{}, transportErr("connect", err)
	}
	return BytesSender{raw: s}, nil
}

// BytesSender sends pre-encoded byte messages with no side-band handles.
type BytesSender struct {
	raw platform.RawSender
}

func (s BytesSender) Send(data []byte) error {
	if err := s.raw.Send(data, nil, nil); err != nil {
		return transportErr("send", err)
	}
	return nil
}

func (s BytesSender) Clone() BytesSender { return BytesSender{raw: s.raw.Clone()} }
func (s BytesSender) Close() error       { return s.raw.Close() }

func (s BytesSender) ipcEncode(st *encodeState) error {
	st.channels = append(st.channels, platform.SenderChannel(s.raw.Clone()))
	return nil
}

func (s *BytesSender) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	s.raw = h.ToSender()
	return nil
}

func newBytesReceiver(r platform.RawReceiver) BytesReceiver {
	return BytesReceiver{state: &receiverState{raw: r}}
}

// BytesReceiver reads pre-encoded byte messages. Move-only, same discipline
// as TypedReceiver.
type BytesReceiver struct {
	state *receiverState
}

// Recv blocks for the next message and returns its payload. Any handles or
// shared-memory regions that arrived with the message are dropped without
// being returned; BytesSender never attaches any.
func (r BytesReceiver) Recv() ([]byte, error) {
	if err := r.state.checkLive(); err != nil {
		return nil, err
	}
	payload, _, _, err := r.state.raw.Recv()
	if err != nil {
		return nil, transportErr("recv", err)
	}
	return payload, nil
}

func (r BytesReceiver) TryRecv() ([]byte, error) {
	if err := r.state.checkLive(); err != nil {
		return nil, err
	}
	payload, _, _, err := r.state.raw.TryRecv()
	if err != nil {
		return nil, transportErr("try-recv", err)
	}
	return payload, nil
}

func (r BytesReceiver) Close() error {
	if r.state.checkLive() != nil {
		return nil
	}
	return r.state.raw.Close()
}

func (r BytesReceiver) ipcEncode(st *encodeState) error {
	if r.state == nil {
		return ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return err
	}
	st.channels = append(st.channels, platform.ReceiverChannel(r.state.raw))
	return nil
}

func (r *BytesReceiver) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	r.state = &receiverState{raw: h.ToReceiver()}
	return nil
}

// OpaqueSender is a type-erased TypedSender, useful for holding senders of
// different message types in one collection before they're routed.
type OpaqueSender struct {
	raw platform.RawSender
}

// OpaqueSenderFrom erases the type of s. The original TypedSender remains
// usable; both share the same underlying pipe handle after this call in the
// same way Clone does.
func OpaqueSenderFrom[T any](s TypedSender[T]) OpaqueSender {
	return OpaqueSender{raw: s.raw.Clone()}
}

func (s OpaqueSender) Clone() OpaqueSender { return OpaqueSender{raw: s.raw.Clone()} }
func (s OpaqueSender) Close() error        { return s.raw.Close() }

func (s OpaqueSender) ipcEncode(st *encodeState) error {
	st.channels = append(st.channels, platform.SenderChannel(s.raw.Clone()))
	return nil
}

func (s *OpaqueSender) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	s.raw = h.ToSender()
	return nil
}

// OpaqueReceiver is a type-erased TypedReceiver. Messages read off it stay
// as raw OpaqueMessage values until a caller who knows the concrete type
// calls DecodeOpaque on them; this is how ReceiverSet reports results
// across receivers of differing message types.
type OpaqueReceiver struct {
	state *receiverState
}

// OpaqueReceiverFrom erases the type of r; r is consumed, matching
// TypedReceiver's normal move-on-transfer rule.
func OpaqueReceiverFrom[T any](r TypedReceiver[T]) (OpaqueReceiver, error) {
	if r.state == nil {
		return OpaqueReceiver{}, ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return OpaqueReceiver{}, err
	}
	return OpaqueReceiver{state: &receiverState{raw: r.state.raw}}, nil
}

func (r OpaqueReceiver) Recv() (OpaqueMessage, error) {
	if err := r.state.checkLive(); err != nil {
		return OpaqueMessage{}, err
	}
	payload, handles, memory, err := r.state.raw.Recv()
	if err != nil {
		return OpaqueMessage{}, transportErr("recv", err)
	}
	return OpaqueMessage{payload: payload, handles: handles, memory: memory}, nil
}

func (r OpaqueReceiver) Close() error {
	if r.state.checkLive() != nil {
		return nil
	}
	return r.state.raw.Close()
}

func (r OpaqueReceiver) ipcEncode(st *encodeState) error {
	if r.state == nil {
		return ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return err
	}
	st.channels = append(st.channels, platform.ReceiverChannel(r.state.raw))
	return nil
}

func (r *OpaqueReceiver) ipcDecode(st *decodeState) error {
	h, err := st.takeHandle()
	if err != nil {
		return err
	}
	r.state = &receiverState{raw: h.ToReceiver()}
	return nil
}

// OpaqueMessage is a received-but-not-yet-decoded message: the raw payload
// plus whatever side-band handles and memory accompanied it.
type OpaqueMessage struct {
	payload []byte
	handles []platform.OpaqueHandle
	memory  []platform.Memory
}

// DecodeOpaque decodes m as a T. It may only be called once per message:
// each call wraps m's side-band handles and memory in new endpoints, so a
// second call would create a second owner for the same handles.
func DecodeOpaque[T any](m OpaqueMessage) (T, error) {
	return decode[T](m.payload, m.handles, m.memory)
}
