package probe

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestTCP_Reachable(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    require.NoError(t, err)
    defer ln.Close()
    go func() {
        for {
            c, err := ln.Accept()
            if err != nil { return }
            _ = c.Close()
        }
    }()
    assert.NoError(t, TCP{Timeout: time.Second}.Probe(context.Background(), ln.Addr().String()))
}

func TestTCP_Unreachable(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    require.NoError(t, err)
    addr := ln.Addr().String()
    _ = ln.Close()
    err = TCP{Timeout: time.Second}.Probe(context.Background(), addr)
    assert.ErrorIs(t, err, ErrUnreachable)
}
