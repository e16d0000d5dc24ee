package ipc

import "github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"

// NewOneShotServer starts a rendezvous point and returns both the server
// and the name a peer process must pass to ConnectTypedSender to reach it.
// A typical bootstrap: spawn the peer with name on its command line (or in
// an environment variable), then block on Accept.
func NewOneShotServer[T any]() (*OneShotServer[T], string, error) {
	raw, name, err := defaultBackend.NewOneShotServer()
	if err != nil {
		return nil, "", transportErr("new-one-shot-server", err)
	}
	return &OneShotServer[T]{raw: raw}, name, nil
}

// OneShotServer accepts exactly one connection and yields the receiver end
// of that channel along with whatever the connecting peer sent as its
// first message — the same one-shot rendezvous-then-handoff pattern used
// to bootstrap a full-duplex channel by sending a fresh sender across as
// that first message.
type OneShotServer[T any] struct {
	raw platform.OneShotServer
}

// Accept blocks until a peer connects, decodes their first message as T,
// and returns a receiver for any further messages of that type.
func (s *OneShotServer[T]) Accept() (TypedReceiver[T], T, error) {
	var zero T
	r, payload, handles, memory, err := s.raw.Accept()
	if err != nil {
		return TypedReceiver[T]{}, zero, transportErr("accept", err)
	}
	v, err := decode[T](payload, handles, memory)
	if err != nil {
		r.Close()
		return TypedReceiver[T]{}, zero, err
	}
	return newTypedReceiver[T](r), v, nil
}

// Close tears down the rendezvous listener without waiting for a peer.
func (s *OneShotServer[T]) Close() error {
	return s.raw.Close()
}
