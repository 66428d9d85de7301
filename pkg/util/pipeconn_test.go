package util

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeConn(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	conn := NewPipeConn(inR, outW)

	go func() {
		inW.Write([]byte("ping"))
	}()
	buf := make([]byte, 4)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	go func() {
		conn.Write([]byte("pong"))
	}()
	_, err = io.ReadFull(outR, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))

	require.NoError(t, conn.Close())
	_, err = outW.Write([]byte("x"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Equal(t, "stdio", conn.LocalAddr().String())
}
