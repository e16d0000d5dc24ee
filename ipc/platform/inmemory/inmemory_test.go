package inmemory

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

func TestTryRecvWouldBlock(t *testing.T) {
	b := New()
	s, r, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer s.Close()
	defer r.Close()

	if _, _, _, err := r.TryRecv(); !errors.Is(err, platform.ErrWouldBlock) {
		t.Fatalf("got %v, want ErrWouldBlock", err)
	}
}

func TestPeerClosed(t *testing.T) {
	b := New()
	s, r, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer r.Close()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, _, err := r.Recv(); !errors.Is(err, platform.ErrPeerClosed) {
		t.Fatalf("got %v, want ErrPeerClosed", err)
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
	if _, err := b.Connect("does-not-exist"); !errors.Is(err, platform.ErrRendezvousNameInvalid) {
		t.Fatalf("got %v, want ErrRendezvousNameInvalid", err)
	}
}

func TestSharedMemoryFromBytes(t *testing.T) {
	b := New()
	mem, err := b.NewSharedMemoryFromBytes([]byte("region"))
	if err != nil {
		t.Fatalf("NewSharedMemoryFromBytes: %v", err)
	}
	defer mem.Close()
	if string(mem.Bytes()) != "region" {
		t.Fatalf("got %q", mem.Bytes())
	}

	clone := mem.Clone()
	defer clone.Close()
	mem.Bytes()[0] = 'R'
	if string(clone.Bytes()) != "Region" {
		t.Fatalf("expected clone to alias the same bytes, got %q", clone.Bytes())
	}
}

func TestReceiverSetSelect(t *testing.T) {
	b := New()
	set, err := b.NewReceiverSet()
	if err != nil {
		t.Fatalf("NewReceiverSet: %v", err)
	}
	defer set.Close()

	s, r, err := b.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	defer s.Close()

	id, err := set.Add(r)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.Send([]byte("ping"), nil, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	results, err := set.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(results) != 1 || results[0].ID != id || string(results[0].Payload) != "ping" {
		t.Fatalf("got %+v", results)
	}
}
