package util

import (
	"errors"
	"io"
	"net"
	"time"
)

// NewPipeConn joins a reader and a writer, such as the standard streams of
// the current process or of a child process, into a net.Conn that jsonrpc2
// header streams can run over. Deadlines are not supported.
func NewPipeConn(r io.ReadCloser, w io.WriteCloser) net.Conn {
	return &pipeConn{r: r, w: w}
}

type pipeConn struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (p *pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipeConn) Close() error {
	return errors.Join(p.w.Close(), p.r.Close())
}

func (p *pipeConn) LocalAddr() net.Addr              { return pipeAddr{} }
func (p *pipeConn) RemoteAddr() net.Addr             { return pipeAddr{} }
func (p *pipeConn) SetDeadline(time.Time) error      { return nil }
func (p *pipeConn) SetReadDeadline(time.Time) error  { return nil }
func (p *pipeConn) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "stdio" }
