// transport_bench_test.go measures the real transport path, not just the
// codec: Channel/BytesChannel round trips over the live backend for a
// range of payload sizes, plus ReceiverSet fan-in and SharedMemory writes.
package benchmark

import (
	"testing"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc"
)

var (
	smallPayload  = []byte("small message payload")
	mediumPayload = make([]byte, 64*1024)
	largePayload  = make([]byte, 1024*1024)
)

func init() {
	for i := range mediumPayload {
		mediumPayload[i] = byte(i % 256)
	}
	for i := range largePayload {
		largePayload[i] = byte(i % 256)
	}
}

func benchmarkBytesRoundTrip(b *testing.B, data []byte) {
	s, r, err := ipc.BytesChannel()
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	defer r.Close()

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.Send(data); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Recv(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBytesChannel_Small(b *testing.B)  { benchmarkBytesRoundTrip(b, smallPayload) }
func BenchmarkBytesChannel_Medium(b *testing.B) { benchmarkBytesRoundTrip(b, mediumPayload) }

// largePayload is deliberately not sent through BytesChannel/Channel: the
// Unix backend's SOCK_SEQPACKET transport caps one message at maxRecvBuf
// (512KiB, see ipc/platform/unix/unix.go), so anything this size belongs in
// a SharedMemory region instead, benchmarked directly below.

// BenchmarkSharedMemory_Write measures writing through a mapped region
// directly, the case large payloads are meant to avoid a transport copy
// for entirely.
func BenchmarkSharedMemory_Write(b *testing.B) {
	mem, err := ipc.NewSharedMemoryFromByte(0, len(largePayload))
	if err != nil {
		b.Fatal(err)
	}
	defer mem.Close()

	b.SetBytes(int64(len(largePayload)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		copy(mem.Bytes(), largePayload)
	}
}

func BenchmarkReceiverSet_FanIn(b *testing.B) {
	const receivers = 8

	set, err := ipc.NewReceiverSet()
	if err != nil {
		b.Fatal(err)
	}
	defer set.Close()

	senders := make([]ipc.TypedSender[int], receivers)
	for i := range senders {
		s, r, err := ipc.Channel[int]()
		if err != nil {
			b.Fatal(err)
		}
		defer s.Close()
		if _, err := ipc.AddReceiver(set, r); err != nil {
			b.Fatal(err)
		}
		senders[i] = s
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := senders[i%receivers].Send(i); err != nil {
			b.Fatal(err)
		}
		if _, err := set.Select(); err != nil {
			b.Fatal(err)
		}
	}
}
