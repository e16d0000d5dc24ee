// Command ipcecho demonstrates bootstrapping a channel across a forked
// child process: the parent opens a OneShotServer, launches the child with
// the rendezvous name on its command line, and the child dials back in
// with ConnectTypedSender. Run with no arguments to play both roles.
package main

import (
	"log"
	"os"
	"os/exec"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc"
)

// EchoRequest is the message type exchanged over the bootstrapped channel.
type EchoRequest struct {
	Message string
	Seq     int
}

func main() {
	if len(os.Args) > 2 && os.Args[1] == "client" {
		runClient(os.Args[2])
		return
	}
	runServer()
}

func runServer() {
	server, name, err := ipc.NewOneShotServer[EchoRequest]()
	if err != nil {
		log.Fatalf("ipcecho: new one-shot server: %v", err)
	}
	defer server.Close()

	cmd := exec.Command(os.Args[0], "client", name)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Fatalf("ipcecho: start child: %v", err)
	}

	receiver, first, err := server.Accept()
	if err != nil {
		log.Fatalf("ipcecho: accept: %v", err)
	}
	defer receiver.Close()
	log.Printf("server: received %q (seq %d)", first.Message, first.Seq)

	for {
		req, err := receiver.Recv()
		if err != nil {
			break
		}
		log.Printf("server: received %q (seq %d)", req.Message, req.Seq)
	}

	if err := cmd.Wait(); err != nil {
		log.Fatalf("ipcecho: child: %v", err)
	}
}

func runClient(name string) {
	sender, err := ipc.ConnectTypedSender[EchoRequest](name)
	if err != nil {
		log.Fatalf("ipcecho client: connect: %v", err)
	}
	defer sender.Close()

	for i := 0; i < 4; i++ {
		if err := sender.Send(EchoRequest{Message: "ping", Seq: i}); err != nil {
			log.Fatalf("ipcecho client: send: %v", err)
		}
	}
}
