package ipc

import (
	"bytes"
	"io"
	"sync"
)

// bufferPool amortizes the *bytes.Buffer allocations every Send call needs
// while the codec builds the wire payload.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// getBuffer returns a reset, ready-to-write buffer from the pool.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns buf to the pool, refusing to pool oversized buffers so
// one large message can't permanently bloat the pool's steady-state memory.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() < 1024*64 {
		bufferPool.Put(buf)
	}
}

// writeVarint writes v as a base-128 varint: small numbers cost one byte,
// larger ones cost more, same encoding as protobuf's varint.
func writeVarint(buf *bytes.Buffer, v uint64) error {
	for v >= 0x80 {
		if err := buf.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return buf.WriteByte(byte(v))
}

// readVarint reads a varint written by writeVarint.
func readVarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, serializationErr("read-varint", errVarintOverflow)
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

// writeLeaf length-prefixes an already-encoded leaf value.
func writeLeaf(buf *bytes.Buffer, b []byte) error {
	if err := writeVarint(buf, uint64(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

// readLeaf reads back a length-prefixed leaf value written by writeLeaf.
func readLeaf(r *bytes.Reader) ([]byte, error) {
	n, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxLeafLen {
		return nil, serializationErr("read-leaf", errLeafTooLarge)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

const maxLeafLen = 1 << 30
