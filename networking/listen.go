package networking

import (
	"context"
	"net"

	"ftcp/protocol"
)

// Listen binds a listening socket on addr with SO_REUSEADDR so a restarted
// receiver can rebind its port immediately.
func Listen(addr string) (net.Listener, error) {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return nil, protocol.WrapErr(protocol.ErrBind, err)
	}
	lc := &net.ListenConfig{Control: reuseAddr}
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, protocol.WrapErr(protocol.ErrListen, err)
	}
	return l, nil
}

// Accept waits for one client and wraps it. TCP_NODELAY is set so acks go
// out without coalescing delay.
func Accept(l net.Listener) (*Stream, error) {
	conn, err := l.Accept()
	if err != nil {
		return nil, protocol.WrapErr(protocol.ErrAccept, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return NewStream(conn), nil
}
