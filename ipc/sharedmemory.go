package ipc

import (
	"bytes"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// NewSharedMemoryFromBytes allocates a new shared-memory region containing
// a copy of b.
func NewSharedMemoryFromBytes(b []byte) (SharedMemory, error) {
	m, err := defaultBackend.NewSharedMemoryFromBytes(b)
	if err != nil {
		return SharedMemory{}, transportErr("new-shared-memory", err)
	}
	return SharedMemory{mem: m}, nil
}

// NewSharedMemoryFromByte allocates a new shared-memory region of length
// bytes, every byte set to fill.
func NewSharedMemoryFromByte(fill byte, length int) (SharedMemory, error) {
	m, err := defaultBackend.NewSharedMemoryFromByte(fill, length)
	if err != nil {
		return SharedMemory{}, transportErr("new-shared-memory", err)
	}
	return SharedMemory{mem: m}, nil
}

// SharedMemory is a cloneable view onto one memory-mapped region that can be
// embedded in any message sent through Channel/BytesChannel. Every clone
// maps the same underlying pages: writes through one view are visible
// through every other, in this process or a peer's, without another
// round-trip through the channel.
type SharedMemory struct {
	mem platform.Memory
}

// Bytes returns the region's current contents. The returned slice aliases
// the mapped pages; mutating it mutates the shared region in place. This is
// a deliberate enrichment over a read-only view: Go has no way to hand back
// an immutable []byte short of a defensive copy on every call, and a
// shared-memory region exists specifically so peers can write into it
// without a copy.
func (m SharedMemory) Bytes() []byte {
	if m.mem == nil {
		return nil
	}
	return m.mem.Bytes()
}

// Len is a convenience for len(m.Bytes()).
func (m SharedMemory) Len() int { return len(m.Bytes()) }

// Equal reports whether m and other currently hold identical bytes. It
// compares contents, not identity — two independently allocated regions
// that happen to hold the same bytes compare equal.
func (m SharedMemory) Equal(other SharedMemory) bool {
	return bytes.Equal(m.Bytes(), other.Bytes())
}

// Clone returns an independent handle to the same region.
func (m SharedMemory) Clone() SharedMemory {
	if m.mem == nil {
		return SharedMemory{}
	}
	return SharedMemory{mem: m.mem.Clone()}
}

// Close releases this handle. The underlying region lives until every
// clone, local or transferred to a peer, has been closed.
func (m SharedMemory) Close() error {
	if m.mem == nil {
		return nil
	}
	return m.mem.Close()
}

func (m SharedMemory) ipcEncode(st *encodeState) error {
	if m.mem == nil {
		return ErrConsumed
	}
	st.memory = append(st.memory, m.mem.Clone())
	return nil
}

func (m *SharedMemory) ipcDecode(st *decodeState) error {
	mem, err := st.takeMemory()
	if err != nil {
		return err
	}
	m.mem = mem
	return nil
}
