package inmemory

import "github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"

type oneShotServer struct {
	accepted chan *receiver
	cleanup  func()
}

func (s *oneShotServer) deliver(r *receiver) {
	s.accepted <- r
}

func (s *oneShotServer) Accept() (platform.RawReceiver, []byte, []platform.OpaqueHandle, []platform.Memory, error) {
	r, ok := <-s.accepted
	if !ok {
		return nil, nil, nil, nil, platform.ErrPeerClosed
	}
	payload, handles, mem, err := r.Recv()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return r, payload, handles, mem, nil
}

func (s *oneShotServer) Close() error {
	if s.cleanup != nil {
		s.cleanup()
	}
	return nil
}
