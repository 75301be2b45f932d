package rpc

import (
	"net"
	"net/http"
	"net/rpc"
	"strconv"

	"arcore/hw"
)

// Emu is the part of the emulator controllable remotely. All methods must be
// safe to call while the emulation loop runs.
type Emu interface {
	Reset()
	Restart()
	SetPause(pause bool)
	Paused() bool
	Stop()

	SetRemoteInputs(in hw.Inputs)
	StatusJSON() []byte
}

type emuProxy struct {
	emu Emu
}

func (ep *emuProxy) Reset(_, _ *struct{}) error             { ep.emu.Reset(); return nil }
func (ep *emuProxy) Restart(_, _ *struct{}) error           { ep.emu.Restart(); return nil }
func (ep *emuProxy) SetPause(pause bool, _ *struct{}) error { ep.emu.SetPause(pause); return nil }
func (ep *emuProxy) Stop(_ *struct{}, _ *struct{}) error    { ep.emu.Stop(); return nil }

func (ep *emuProxy) Paused(_ *struct{}, reply *bool) error {
	*reply = ep.emu.Paused()
	return nil
}

func (ep *emuProxy) SetInputs(in hw.Inputs, _ *struct{}) error {
	ep.emu.SetRemoteInputs(in)
	return nil
}

func (ep *emuProxy) Status(_ *struct{}, reply *[]byte) error {
	*reply = ep.emu.StatusJSON()
	return nil
}

type Server struct {
	l    net.Listener
	Port int
}

// NewServer starts serving remote control of emu on localhost:port. A zero
// port picks a free one.
func NewServer(port int, emu Emu) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("emu", &emuProxy{emu: emu}); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, srv)

	l, err := net.Listen("tcp", "localhost:"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	port = l.Addr().(*net.TCPAddr).Port

	modRPC.InfoZ("rpc server listening").Int("port", port).End()
	go http.Serve(l, mux)
	return &Server{l: l, Port: port}, nil
}

func (s *Server) Close() error {
	modRPC.DebugZ("closing rpc server").End()
	return s.l.Close()
}
