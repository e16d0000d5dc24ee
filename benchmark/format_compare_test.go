// format_compare_test.go compares the reflective, side-band-aware codec in
// ipc/codec.go against protobuf's generated-code path for payload shapes
// that carry no embedded endpoints or shared memory — the case where the
// two approaches are directly comparable, since the generic walk's extra
// work (the reflect.Struct/Slice/Map traversal) buys nothing over a
// hand-generated Marshal for a message with no side-band content.
package benchmark

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc"
)

type loginPayload struct {
	Username string
	Password string
	ClientID string
}

var loginTestData = loginPayload{
	Username: "john.doe@example.com",
	Password: "super_secret_password_123",
	ClientID: "client-abc-123-xyz",
}

var blobTestData = []byte("this is some test blob data, repeated a few times to be representative of a real chunk this is some test blob data")

// --------------------
// Benchmarks: a small struct payload
// --------------------

func BenchmarkIPCCodec_Login_RoundTrip(b *testing.B) {
	s, r, err := ipc.Channel[loginPayload]()
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	defer r.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.Send(loginTestData); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Recv(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProtobuf_Login_MarshalUnmarshal(b *testing.B) {
	msg := &wrapperspb.StringValue{Value: loginTestData.Username + "\x00" + loginTestData.Password + "\x00" + loginTestData.ClientID}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		data, err := proto.Marshal(msg)
		if err != nil {
			b.Fatal(err)
		}
		var out wrapperspb.StringValue
		if err := proto.Unmarshal(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}

// --------------------
// Benchmarks: a raw byte blob, the case BytesSender/BytesReceiver exist for
// --------------------

func BenchmarkIPCBytesChannel_Blob_RoundTrip(b *testing.B) {
	s, r, err := ipc.BytesChannel()
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	defer r.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.Send(blobTestData); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Recv(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProtobuf_Blob_MarshalUnmarshal(b *testing.B) {
	msg := &wrapperspb.BytesValue{Value: blobTestData}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		data, err := proto.Marshal(msg)
		if err != nil {
			b.Fatal(err)
		}
		var out wrapperspb.BytesValue
		if err := proto.Unmarshal(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}
