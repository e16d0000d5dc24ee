package ipc

import "testing"

func TestOneShotServerRendezvous(t *testing.T) {
	server, name, err := NewOneShotServer[string]()
	if err != nil {
		t.Fatalf("NewOneShotServer: %v", err)
	}

	done := make(chan error, 1)
	var sender TypedSender[string]
	go func() {
		var err error
		sender, err = ConnectTypedSender[string](name)
		if err != nil {
			done <- err
			return
		}
		done <- sender.Send("hello server")
	}()

	receiver, first, err := server.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer server.Close()
	defer receiver.Close()

	if err := <-done; err != nil {
		t.Fatalf("client goroutine: %v", err)
	}
	defer sender.Close()

	if first != "hello server" {
		t.Fatalf("got %q, want %q", first, "hello server")
	}

	if err := sender.Send("second message"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	second, err := receiver.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if second != "second message" {
		t.Fatalf("got %q", second)
	}
}
