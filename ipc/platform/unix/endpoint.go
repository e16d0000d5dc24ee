//go:build linux || darwin || freebsd

package unix

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// fdHandle is a refcounted wrapper around one kernel file descriptor, shared
// between every clone of a sender. The kernel-level close happens only when
// the last clone drops it.
type fdHandle struct {
	fd   int
	refs int32
}

func newFDHandle(fd int) *fdHandle { return &fdHandle{fd: fd, refs: 1} }

func (h *fdHandle) retain() { atomic.AddInt32(&h.refs, 1) }

func (h *fdHandle) release() error {
	if atomic.AddInt32(&h.refs, -1) == 0 {
		return unix.Close(h.fd)
	}
	return nil
}

// fdSource is satisfied by both endpoint types in this package; it lets
// Send extract the raw descriptor of an embedded sender or receiver without
// widening the public platform.RawSender/RawReceiver contract.
type fdSource interface {
	rawFD() int
}

func newEndpoint(fd int) *socketEndpoint {
	return &socketEndpoint{handle: newFDHandle(fd)}
}

// socketEndpoint backs both the sender and receiver ends of a channel; a
// freshly made socketpair hands out one of each, and only the methods of
// the interface the caller asked for (RawSender or RawReceiver) are ever
// invoked on a given end.
type socketEndpoint struct {
	handle *fdHandle
	closed atomic.Bool
}

func (e *socketEndpoint) rawFD() int { return e.handle.fd }

func (e *socketEndpoint) Send(payload []byte, channels []platform.Channel, memory []platform.Memory) error {
	if e.closed.Load() {
		return platform.ErrPeerClosed
	}
	if len(payload) > maxFrameLen {
		return fmt.Errorf("unix: payload too large: %d bytes", len(payload))
	}

	fds := make([]int, 0, len(channels)+len(memory))
	for _, c := range channels {
		var src fdSource
		switch c.Kind {
		case platform.ChannelKindSender:
			src = c.Sender.(fdSource)
		case platform.ChannelKindReceiver:
			src = c.Receiver.(fdSource)
		}
		fds = append(fds, src.rawFD())
	}
	for _, m := range memory {
		fds = append(fds, m.(fdSource).rawFD())
	}

	header := encodeFrameHeader(frameHeader{
		numChannels: uint32(len(channels)),
		numMemory:   uint32(len(memory)),
		payloadLen:  uint32(len(payload)),
	})
	frame := append(header, payload...)

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}

	if err := unix.Sendmsg(e.handle.fd, frame, oob, nil, 0); err != nil {
		if err == unix.EPIPE || err == unix.ECONNRESET {
			return platform.ErrPeerClosed
		}
		return fmt.Errorf("unix: sendmsg: %w", err)
	}

	// Ownership of transported channels/memory passes to the peer: close
	// our local copies now that the kernel has duplicated them across.
	for _, c := range channels {
		switch c.Kind {
		case platform.ChannelKindSender:
			c.Sender.Close()
		case platform.ChannelKindReceiver:
			c.Receiver.Close()
		}
	}
	for _, m := range memory {
		m.Close()
	}
	return nil
}

func (e *socketEndpoint) Clone() platform.RawSender {
	e.handle.retain()
	return &socketEndpoint{handle: e.handle}
}

func (e *socketEndpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.handle.release()
}

func (e *socketEndpoint) Recv() ([]byte, []platform.OpaqueHandle, []platform.Memory, error) {
	return e.recv(false)
}

func (e *socketEndpoint) TryRecv() ([]byte, []platform.OpaqueHandle, []platform.Memory, error) {
	return e.recv(true)
}

func (e *socketEndpoint) recv(nonblocking bool) ([]byte, []platform.OpaqueHandle, []platform.Memory, error) {
	if e.closed.Load() {
		return nil, nil, nil, platform.ErrPeerClosed
	}

	flags := 0
	if nonblocking {
		flags = unix.MSG_DONTWAIT
	}

	buf := make([]byte, maxRecvBuf)
	oob := make([]byte, unix.CmsgSpace(maxAncillaryFDs*4))

	n, oobn, _, _, err := unix.Recvmsg(e.handle.fd, buf, oob, flags)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil, nil, platform.ErrWouldBlock
		}
		if err == unix.ECONNRESET {
			return nil, nil, nil, platform.ErrPeerClosed
		}
		return nil, nil, nil, fmt.Errorf("unix: recvmsg: %w", err)
	}
	if n == 0 {
		return nil, nil, nil, platform.ErrPeerClosed
	}

	header, err := decodeFrameHeader(buf[:n])
	if err != nil {
		return nil, nil, nil, err
	}
	payloadEnd := frameHeaderLen + int(header.payloadLen)
	if payloadEnd > n {
		return nil, nil, nil, errProtocol
	}
	payload := make([]byte, header.payloadLen)
	copy(payload, buf[frameHeaderLen:payloadEnd])

	fds, err := parseRights(oob[:oobn])
	if err != nil {
		return nil, nil, nil, err
	}
	want := int(header.numChannels + header.numMemory)
	if len(fds) != want {
		for _, fd := range fds {
			unix.Close(fd)
		}
		return nil, nil, nil, errProtocol
	}

	handles := make([]platform.OpaqueHandle, header.numChannels)
	for i := range handles {
		handles[i] = &opaqueHandle{handle: newFDHandle(fds[i])}
	}
	mem := make([]platform.Memory, header.numMemory)
	for i := range mem {
		fd := fds[int(header.numChannels)+i]
		m, err := memoryFromFD(fd)
		if err != nil {
			return nil, nil, nil, err
		}
		mem[i] = m
	}

	return payload, handles, mem, nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("unix: parse control message: %w", err)
	}
	var fds []int
	for _, m := range msgs {
		f, err := unix.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		fds = append(fds, f...)
	}
	if len(fds) > maxAncillaryFDs {
		return nil, errProtocol
	}
	return fds, nil
}

// opaqueHandle is a just-received fd that has not yet been classified as a
// sender or a receiver; the codec decides based on the field it's decoding
// into, not on anything carried over the wire.
type opaqueHandle struct {
	handle *fdHandle
}

func (h *opaqueHandle) rawFD() int { return h.handle.fd }

func (h *opaqueHandle) ToSender() platform.RawSender {
	return &socketEndpoint{handle: h.handle}
}

func (h *opaqueHandle) ToReceiver() platform.RawReceiver {
	return &socketEndpoint{handle: h.handle}
}
