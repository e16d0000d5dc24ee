//go:build linux || darwin || freebsd

package unix

import (
	"errors"
	"testing"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

func TestChannelSendRecv(t *testing.T) {
	b := New()
	s, r, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer s.Close()
	defer r.Close()

	if err := s.Send([]byte("hi"), nil, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	payload, handles, mem, err := r.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(payload) != "hi" || len(handles) != 0 || len(mem) != 0 {
		t.Fatalf("got %q %v %v", payload, handles, mem)
	}
}

// TestFDPassing sends one channel end as an embedded handle and checks the
// receiving side gets a live, independently usable descriptor back.
func TestFDPassing(t *testing.T) {
	b := New()
	outerSender, outerReceiver, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer outerSender.Close()
	defer outerReceiver.Close()

	innerSender, innerReceiver, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer innerSender.Close()

	if err := outerSender.Send(nil, []platform.Channel{platform.ReceiverChannel(innerReceiver)}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, handles, _, err := outerReceiver.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("got %d handles, want 1", len(handles))
	}
	receivedReceiver := handles[0].ToReceiver()
	defer receivedReceiver.Close()

	if err := innerSender.Send([]byte("through the passed fd"), nil, nil); err != nil {
		t.Fatalf("Send on inner sender: %v", err)
	}
	payload, _, _, err := receivedReceiver.Recv()
	if err != nil {
		t.Fatalf("Recv on passed fd: %v", err)
	}
	if string(payload) != "through the passed fd" {
		t.Fatalf("got %q", payload)
	}
}

func TestSharedMemoryOverFD(t *testing.T) {
	b := New()
	mem, err := b.NewSharedMemoryFromBytes([]byte("mapped"))
	if err != nil {
		t.Fatalf("NewSharedMemoryFromBytes: %v", err)
	}

	s, r, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer s.Close()
	defer r.Close()

	if err := s.Send(nil, nil, []platform.Memory{mem}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, _, memList, err := r.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(memList) != 1 {
		t.Fatalf("got %d memory regions, want 1", len(memList))
	}
	defer memList[0].Close()
	if string(memList[0].Bytes()) != "mapped" {
		t.Fatalf("got %q", memList[0].Bytes())
	}
}

func TestOneShotServerRendezvous(t *testing.T) {
	b := New()
	server, name, err := b.NewOneShotServer()
	if err != nil {
		t.Fatalf("NewOneShotServer: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		s, err := b.Connect(name)
		if err != nil {
			done <- err
			return
		}
		defer s.Close()
		done <- s.Send([]byte("hello"), nil, nil)
	}()

	r, payload, _, _, err := server.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer r.Close()
	defer server.Close()

	if err := <-done; err != nil {
		t.Fatalf("client: %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("got %q", payload)
	}
}

func TestConnectUnknownNameFails(t *testing.T) {
	b := New()
	if _, err := b.Connect("/tmp/ridged-ipc-does-not-exist.sock"); !errors.Is(err, platform.ErrRendezvousNameInvalid) {
		t.Fatalf("got %v, want ErrRendezvousNameInvalid", err)
	}
}
