// Package inmemory is the in-process fallback backend: no real OS handles
// cross a process boundary, channel endpoints and shared-memory blocks are
// plain Go heap objects guarded by mutexes, and "transport" is a buffered
// Go channel. It is the default backend on platforms without a
// Unix-domain-socket backend; this package's own tests exercise it
// directly through the platform contract.
package inmemory

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

const queueCapacity = 64

type message struct {
	payload []byte
	handles []platform.OpaqueHandle
	memory  []platform.Memory
}

// pipe is the shared state between a RawSender clone family and its single
// RawReceiver.
type pipe struct {
	mu       sync.Mutex
	queue    chan message
	closed   bool
	senders  int32 // live sender clones
	receiver *receiver
}

func newPipe(capacity int) *pipe {
	return &pipe{queue: make(chan message, capacity)}
}

func (p *pipe) closeFromLastSender() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

// BackendOptions configures a Backend beyond its zero value, via a preset
// options struct and constructor rather than functional-options closures.
type BackendOptions struct {
	// QueueCapacity bounds how many messages a pipe buffers before Send
	// blocks. Defaults to 64 when zero.
	QueueCapacity int
}

// Backend implements platform.Backend entirely with Go runtime primitives.
type Backend struct {
	mu            sync.Mutex
	servers       map[string]*oneShotServer
	nextName      uint64
	queueCapacity int
}

// New returns an in-memory backend instance with default options.
func New() *Backend {
	return NewWithOptions(BackendOptions{})
}

// NewWithOptions returns an in-memory backend configured by opts.
func NewWithOptions(opts BackendOptions) *Backend {
	qc := opts.QueueCapacity
	if qc <= 0 {
		qc = queueCapacity
	}
	return &Backend{servers: make(map[string]*oneShotServer), queueCapacity: qc}
}

func (b *Backend) Channel() (platform.RawSender, platform.RawReceiver, error) {
	p := newPipe(b.queueCapacity)
	p.senders = 1
	s := &sender{pipe: p}
	r := &receiver{pipe: p}
	p.receiver = r
	return s, r, nil
}

func (b *Backend) Connect(name string) (platform.RawSender, error) {
	b.mu.Lock()
	srv, ok := b.servers[name]
	b.mu.Unlock()
	if !ok {
		return nil, platform.ErrRendezvousNameInvalid
	}
	p := newPipe(b.queueCapacity)
	p.senders = 1
	r := &receiver{pipe: p}
	p.receiver = r
	srv.deliver(r)
	return &sender{pipe: p}, nil
}

func (b *Backend) NewReceiverSet() (platform.ReceiverSet, error) {
	return newReceiverSet(), nil
}

func (b *Backend) NewOneShotServer() (platform.OneShotServer, string, error) {
	id := atomic.AddUint64(&b.nextName, 1)
	name := "inmemory-oneshot-" + strconv.FormatUint(id, 10)
	srv := &oneShotServer{accepted: make(chan *receiver, 1)}
	b.mu.Lock()
	b.servers[name] = srv
	b.mu.Unlock()
	srv.cleanup = func() {
		b.mu.Lock()
		delete(b.servers, name)
		b.mu.Unlock()
	}
	return srv, name, nil
}

func (b *Backend) NewSharedMemoryFromBytes(data []byte) (platform.Memory, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &memory{data: cp}, nil
}

func (b *Backend) NewSharedMemoryFromByte(fill byte, length int) (platform.Memory, error) {
	data := make([]byte, length)
	for i := range data {
		data[i] = fill
	}
	return &memory{data: data}, nil
}
