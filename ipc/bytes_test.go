package ipc

import "testing"

func TestBytesChannelRoundTrip(t *testing.T) {
	s, r, err := BytesChannel()
	if err != nil {
		t.Fatalf("BytesChannel: %v", err)
	}
	defer s.Close()
	defer r.Close()

	want := []byte{1, 2, 3, 4, 5}
	if err := s.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := r.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestOpaqueReceiverDecode erases a TypedReceiver's message type, receives
// a message through the OpaqueReceiver, and decodes it back with the right
// type information.
func TestOpaqueReceiverDecode(t *testing.T) {
	s, r, err := Channel[int]()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer s.Close()

	opaque, err := OpaqueReceiverFrom(r)
	if err != nil {
		t.Fatalf("OpaqueReceiverFrom: %v", err)
	}
	defer opaque.Close()

	if err := s.Send(123); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, err := opaque.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	got, err := DecodeOpaque[int](msg)
	if err != nil {
		t.Fatalf("DecodeOpaque: %v", err)
	}
	if got != 123 {
		t.Fatalf("got %d, want 123", got)
	}
}
