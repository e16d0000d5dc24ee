//go:build linux || darwin || freebsd

// Package unix is the Linux/BSD backend: Unix-domain SOCK_SEQPACKET sockets
// carry the payload, and embedded endpoints/shared-memory blocks cross the
// process boundary as ancillary file descriptors (SCM_RIGHTS). Shared memory
// is backed by memfd_create + mmap(MAP_SHARED).
//
// Every syscall here goes through golang.org/x/sys/unix.
package unix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// maxAncillaryFDs bounds how many file descriptors we'll ever accept in one
// control message; it guards against a corrupt or hostile peer inflating the
// kernel-side cmsg buffer we allocate to read into.
const maxAncillaryFDs = 256

// maxRecvBuf is the fixed-size buffer a single recvmsg reads a
// SOCK_SEQPACKET datagram into. Unlike a stream socket, a seqpacket
// recvmsg that can't fit the whole datagram truncates it and discards the
// rest, so this is a hard ceiling on one typed message's encoded payload,
// not just a tuning knob. A message that won't fit must go through
// SharedMemory instead of a TypedSender/BytesSender Send.
const maxRecvBuf = 512 * 1024

// maxFrameLen bounds the payload of one frame: the internal header plus the
// payload must fit in maxRecvBuf, so Send can never produce a frame the
// matching Recv is unable to read back whole.
const maxFrameLen = maxRecvBuf - frameHeaderLen

var errProtocol = errors.New("unix: malformed frame header")

// frameHeader is this backend's own wire preamble, internal to the Unix
// transport: it tells the receiving side how many of the incoming ancillary
// file descriptors are embedded channels versus shared-memory regions, so
// they can be split back into the two slices platform.RawReceiver.Recv
// returns. None of this is visible to the generic codec in ipc/codec.go.
type frameHeader struct {
	numChannels uint32
	numMemory   uint32
	payloadLen  uint32
}

const frameHeaderLen = 12

func encodeFrameHeader(h frameHeader) []byte {
	buf := make([]byte, frameHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.numChannels)
	binary.BigEndian.PutUint32(buf[4:8], h.numMemory)
	binary.BigEndian.PutUint32(buf[8:12], h.payloadLen)
	return buf
}

func decodeFrameHeader(buf []byte) (frameHeader, error) {
	if len(buf) < frameHeaderLen {
		return frameHeader{}, errProtocol
	}
	h := frameHeader{
		numChannels: binary.BigEndian.Uint32(buf[0:4]),
		numMemory:   binary.BigEndian.Uint32(buf[4:8]),
		payloadLen:  binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.payloadLen > maxFrameLen {
		return frameHeader{}, errProtocol
	}
	return h, nil
}

// BackendOptions configures a Backend beyond its zero value, via a preset
// options struct and constructor rather than functional-options closures.
type BackendOptions struct {
	// Dir overrides the directory OneShotServer rendezvous socket files
	// are created in. Defaults to os.TempDir() when empty.
	Dir string
}

// Backend implements platform.Backend over Unix-domain sockets.
type Backend struct {
	// Dir is the directory OneShotServer rendezvous socket files are
	// created in. Defaults to os.TempDir() when empty.
	Dir string

	mu       sync.Mutex
	nextName uint64
}

// New returns a Unix-domain-socket backend with default options.
func New() *Backend { return &Backend{} }

// NewWithOptions returns a Backend configured by opts.
func NewWithOptions(opts BackendOptions) *Backend { return &Backend{Dir: opts.Dir} }

func (b *Backend) socketDir() string {
	if b.Dir != "" {
		return b.Dir
	}
	return os.TempDir()
}

func (b *Backend) Channel() (platform.RawSender, platform.RawReceiver, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("unix: socketpair: %w", err)
	}
	return newEndpoint(fds[0]), newEndpoint(fds[1]), nil
}

func (b *Backend) Connect(name string) (platform.RawSender, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, fmt.Errorf("unix: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: name}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s", platform.ErrRendezvousNameInvalid, err)
	}
	return newEndpoint(fd), nil
}

func (b *Backend) NewReceiverSet() (platform.ReceiverSet, error) {
	return newReceiverSet(), nil
}

func (b *Backend) NewOneShotServer() (platform.OneShotServer, string, error) {
	id := atomic.AddUint64(&b.nextName, 1)
	path := fmt.Sprintf("%s/ridged-ipc-%d-%d.sock", b.socketDir(), os.Getpid(), id)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, "", fmt.Errorf("unix: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, "", fmt.Errorf("unix: bind: %w", err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, "", fmt.Errorf("unix: listen: %w", err)
	}
	return &oneShotServer{fd: fd, path: path}, path, nil
}

func (b *Backend) NewSharedMemoryFromBytes(data []byte) (platform.Memory, error) {
	m, err := newMemory(len(data))
	if err != nil {
		return nil, err
	}
	copy(m.data, data)
	return m, nil
}

func (b *Backend) NewSharedMemoryFromByte(fill byte, length int) (platform.Memory, error) {
	m, err := newMemory(length)
	if err != nil {
		return nil, err
	}
	for i := range m.data {
		m.data[i] = fill
	}
	return m, nil
}
