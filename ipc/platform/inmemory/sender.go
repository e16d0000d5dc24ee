package inmemory

import (
	"sync/atomic"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

type sender struct {
	pipe   *pipe
	closed atomic.Bool
}

func (s *sender) Send(payload []byte, channels []platform.Channel, mem []platform.Memory) error {
	if s.closed.Load() {
		return platform.ErrPeerClosed
	}

	handles := make([]platform.OpaqueHandle, len(channels))
	for i, c := range channels {
		handles[i] = &opaqueHandle{channel: c}
	}

	s.pipe.mu.Lock()
	closed := s.pipe.closed
	s.pipe.mu.Unlock()
	if closed {
		return platform.ErrPeerClosed
	}

	s.pipe.queue <- message{payload: payload, handles: handles, memory: mem}
	return nil
}

func (s *sender) Clone() platform.RawSender {
	atomic.AddInt32(&s.pipe.senders, 1)
	return &sender{pipe: s.pipe}
}

func (s *sender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if atomic.AddInt32(&s.pipe.senders, -1) == 0 {
		s.pipe.closeFromLastSender()
	}
	return nil
}
