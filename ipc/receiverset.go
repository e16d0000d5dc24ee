package ipc

import "github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"

// NewReceiverSet creates an empty multiplexed set of receivers over the
// default backend.
func NewReceiverSet() (*ReceiverSet, error) {
	raw, err := defaultBackend.NewReceiverSet()
	if err != nil {
		return nil, transportErr("new-receiver-set", err)
	}
	return &ReceiverSet{raw: raw}, nil
}

// ReceiverSet multiplexes receivers of possibly differing message types
// behind one blocking Select call, the way a server accepting connections
// of several kinds needs to wait on all of them at once without spawning a
// goroutine per receiver at the call site (the set still does that
// internally).
type ReceiverSet struct {
	raw platform.ReceiverSet
}

// AddReceiver hands ownership of r to the set. r is consumed: using it
// locally afterward returns ErrConsumed. The returned id identifies r in
// every SelectResult produced from here on.
func AddReceiver[T any](set *ReceiverSet, r TypedReceiver[T]) (uint64, error) {
	if r.state == nil {
		return 0, ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return 0, err
	}
	id, err := set.raw.Add(r.state.raw)
	if err != nil {
		return 0, transportErr("receiver-set-add", err)
	}
	return id, nil
}

// AddOpaque hands ownership of r to the set, same discipline as
// AddReceiver.
func AddOpaque(set *ReceiverSet, r OpaqueReceiver) (uint64, error) {
	if r.state == nil {
		return 0, ErrConsumed
	}
	if err := r.state.consume(); err != nil {
		return 0, err
	}
	id, err := set.raw.Add(r.state.raw)
	if err != nil {
		return 0, transportErr("receiver-set-add", err)
	}
	return id, nil
}

// SelectResult is one outcome of a Select call: either a message arrived on
// receiver ID, or that receiver's peer has closed and it will never
// produce another message.
type SelectResult struct {
	ID      uint64
	Message OpaqueMessage
	Closed  bool
}

// Select blocks until at least one registered receiver has something to
// report, then returns every result currently available without blocking
// further — it coalesces a burst of simultaneous arrivals into one batch
// instead of forcing the caller back through Select message-by-message.
func (s *ReceiverSet) Select() ([]SelectResult, error) {
	raw, err := s.raw.Select()
	if err != nil {
		return nil, transportErr("select", err)
	}
	out := make([]SelectResult, len(raw))
	for i, r := range raw {
		switch r.Kind {
		case platform.ResultChannelClosed:
			out[i] = SelectResult{ID: r.ID, Closed: true}
		default:
			out[i] = SelectResult{
				ID: r.ID,
				Message: OpaqueMessage{
					payload: r.Payload,
					handles: r.Handles,
					memory:  r.Memory,
				},
			}
		}
	}
	return out, nil
}

// Close stops the set from delivering further results. It does not close
// the receivers that were added to the set.
func (s *ReceiverSet) Close() error {
	return s.raw.Close()
}
