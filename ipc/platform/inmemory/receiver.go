package inmemory

import (
	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

type receiver struct {
	pipe *pipe
}

func (r *receiver) Recv() ([]byte, []platform.OpaqueHandle, []platform.Memory, error) {
	msg, ok := <-r.pipe.queue
	if !ok {
		return nil, nil, nil, platform.ErrPeerClosed
	}
	return msg.payload, msg.handles, msg.memory, nil
}

func (r *receiver) TryRecv() ([]byte, []platform.OpaqueHandle, []platform.Memory, error) {
	select {
	case msg, ok := <-r.pipe.queue:
		if !ok {
			return nil, nil, nil, platform.ErrPeerClosed
		}
		return msg.payload, msg.handles, msg.memory, nil
	default:
		return nil, nil, nil, platform.ErrWouldBlock
	}
}

func (r *receiver) Close() error { return nil }

type opaqueHandle struct {
	channel platform.Channel
}

func (h *opaqueHandle) ToSender() platform.RawSender     { return h.channel.Sender }
func (h *opaqueHandle) ToReceiver() platform.RawReceiver { return h.channel.Receiver }

type memory struct {
	data []byte
}

func (m *memory) Bytes() []byte          { return m.data }
func (m *memory) Close() error           { return nil }
func (m *memory) Clone() platform.Memory { return &memory{data: m.data} }
