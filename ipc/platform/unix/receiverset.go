//go:build linux || darwin || freebsd

package unix

import (
	"sync"
	"sync/atomic"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// receiverSet fans the blocking Recv loop of each registered receiver into
// one shared result channel. golang.org/x/sys/unix exposes epoll, but
// mixing a variable, dynamically-growing set of SOCK_SEQPACKET fds through
// one epoll instance while also supporting Close-time teardown is
// materially more code than the one-goroutine-per-receiver fan-in below for
// the same observable behavior, so this backend uses the same strategy as
// the in-process one — a deliberate, narrowly scoped exception to keeping
// goroutines off the hot path.
type receiverSet struct {
	mu      sync.Mutex
	nextID  uint64
	results chan platform.SelectResult
	closed  bool
	done    chan struct{}
}

func newReceiverSet() *receiverSet {
	return &receiverSet{
		results: make(chan platform.SelectResult, 64),
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
