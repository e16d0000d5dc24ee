//go:build linux || darwin || freebsd

package unix

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

type oneShotServer struct {
	fd   int
	path string
}

func (s *oneShotServer) Accept() (platform.RawReceiver, []byte, []platform.OpaqueHandle, []platform.Memory, error) {
	connFD, _, err := unix.Accept(s.fd)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("unix: accept: %w", err)
	}
	r := newEndpoint(connFD)
	payload, handles, mem, err := r.Recv()
	if err != nil {
		r.Close()
		return nil, nil, nil, nil, err
	}
	return r, payload, handles, mem, nil
}

func (s *oneShotServer) Close() error {
	err := unix.Close(s.fd)
	os.Remove(s.path)
	return err
}
