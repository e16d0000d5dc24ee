//go:build linux || darwin || freebsd

package unix

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// sharedMemory wraps a memfd-backed mmap region. Clone maps the same memfd
// again, read-write (a fresh mmap over a retained fd), so the region
// survives as long as any process retains a Memory clone.
type sharedMemory struct {
	handle *fdHandle
	data   []byte
}

func newMemory(length int) (*sharedMemory, error) {
	fd, err := unix.MemfdCreate("ridged-ipc-shm", 0)
	if err != nil {
		return nil, fmt.Errorf("unix: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(length)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unix: ftruncate: %w", err)
	}
	data, err := mmapRegion(fd, length)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &sharedMemory{handle: newFDHandle(fd), data: data}, nil
}

// memoryFromFD re-derives a shared-memory view over an fd received from a
// peer. The region's length travels implicitly with the memfd itself (the
// kernel remembers the size set by ftruncate on the sending side), so the
// wire protocol never needs to carry it explicitly.
func memoryFromFD(fd int) (*sharedMemory, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unix: fstat: %w", err)
	}
	data, err := mmapRegion(fd, int(st.Size))
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &sharedMemory{handle: newFDHandle(fd), data: data}, nil
}

func mmapRegion(fd, length int) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(fd, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix: mmap: %w", err)
	}
	return data, nil
}

func (m *sharedMemory) rawFD() int { return m.handle.fd }

func (m *sharedMemory) Bytes() []byte { return m.data }

// Clone returns an independent mapping of the same memfd: a fresh mmap over
// a retained fd, not a second reference to this mapping's own slice. Each
// clone's Close must only tear down its own mapping, since the sender keeps
// using its region after handing a clone off to Send.
func (m *sharedMemory) Clone() platform.Memory {
	m.handle.retain()
	data, err := mmapRegion(m.handle.fd, len(m.data))
	if err != nil {
		m.handle.release()
		panic(fmt.Sprintf("unix: remap shared memory: %v", err))
	}
	return &sharedMemory{handle: m.handle, data: data}
}

func (m *sharedMemory) Close() error {
	if len(m.data) > 0 {
		unix.Munmap(m.data)
	}
	return m.handle.release()
}
