package inmemory

import (
	"sync"
	"sync/atomic"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// receiverSet fans the queues of every registered receiver into one shared
// result channel. Each Add spawns a forwarding goroutine — a deliberate,
// narrowly scoped exception to keeping goroutines off the hot path:
// ReceiverSet's whole contract is multiplexed waiting, and Go exposes no
// portable "select over N arbitrary channels" primitive below this.
type receiverSet struct {
	mu      sync.Mutex
	nextID  uint64
	results chan platform.SelectResult
	closed  bool
	done    chan struct{}
}

func newReceiverSet() *receiverSet {
	return &receiverSet{
		results: make(chan platform.SelectResult, queueCapacity),
		done:    make(chan struct{}),
	}
}

func (s *receiverSet) Add(r platform.RawReceiver) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, platform.ErrPeerClosed
	}
	id := atomic.AddUint64(&s.nextID, 1)
	s.mu.Unlock()

	go s.forward(id, r)
	return id, nil
}

func (s *receiverSet) forward(id uint64, r platform.RawReceiver) {
	for {
		payload, handles, mem, err := r.Recv()
		if err != nil {
			select {
			case s.results <- platform.SelectResult{Kind: platform.ResultChannelClosed, ID: id}:
			case <-s.done:
			}
			return
		}
		select {
		case s.results <- platform.SelectResult{
			Kind:    platform.ResultMessageReceived,
			ID:      id,
			Payload: payload,
			Handles: handles,
			Memory:  mem,
		}:
		case <-s.done:
			return
		}
	}
}

// Select blocks for at least one result, then drains whatever else is
// already queued without blocking again, coalescing a batch per call
// rather than returning one result at a time.
func (s *receiverSet) Select() ([]platform.SelectResult, error) {
	first, ok := <-s.results
	if !ok {
		return nil, platform.ErrPeerClosed
	}
	batch := []platform.SelectResult{first}
	for {
		select {
		case r, ok := <-s.results:
			if !ok {
				return batch, nil
			}
			batch = append(batch, r)
		default:
			return batch, nil
		}
	}
}

func (s *receiverSet) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	return nil
}
