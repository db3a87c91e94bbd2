package httpjson

import (
    "context"
    "io"
    "log"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-clustercheck/pkg/internal/testcerts"
    tlsx "github.com/amirimatin/go-clustercheck/pkg/security/tlsconfig"
)

func TestMutualTLSRoundTrip(t *testing.T) {
    ca := testcerts.New(t, t.TempDir())
    srvCrt, srvKey := ca.Issue(t, "agent")
    cliCrt, cliKey := ca.Issue(t, "checker")

    srvTLS, err := tlsx.Options{Enable: true, CAFile: ca.CAFile, CertFile: srvCrt, KeyFile: srvKey}.Server()
    require.NoError(t, err)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    srv := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0)).UseTLS(srvTLS)
    require.NoError(t, srv.Start(ctx, nil,
        func(context.Context) ([]byte, error) { return []byte(`[{"node":101,"inCluster":true}]`), nil },
    ))

    cliTLS, err := tlsx.Options{Enable: true, CAFile: ca.CAFile, CertFile: cliCrt, KeyFile: cliKey}.Client()
    require.NoError(t, err)
    b, err := NewClient(time.Second).UseTLS(cliTLS).GetNodes(ctx, srv.Addr())
    require.NoError(t, err)
    assert.JSONEq(t, `[{"node":101,"inCluster":true}]`, string(b))

    // a client without a certificate is refused
    anon, err := tlsx.Options{Enable: true, CAFile: ca.CAFile}.Client()
    require.NoError(t, err)
    _, err = NewClient(time.Second).UseTLS(anon).GetNodes(ctx, srv.Addr())
    assert.Error(t, err)

    // so is plain HTTP
    _, err = NewClient(time.Second).GetNodes(ctx, srv.Addr())
    assert.Error(t, err)
}

func TestClientRejectsUnknownServer(t *testing.T) {
    ours := testcerts.New(t, t.TempDir())
    theirs := testcerts.New(t, t.TempDir())
    crt, key := theirs.Issue(t, "impostor")

    srvTLS, err := tlsx.Options{Enable: true, CertFile: crt, KeyFile: key}.Server()
    require.NoError(t, err)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    srv := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0)).UseTLS(srvTLS)
    require.NoError(t, srv.Start(ctx, nil, func(context.Context) ([]byte, error) { return []byte(`[]`), nil }))

    cliTLS, err := tlsx.Options{Enable: true, CAFile: ours.CAFile}.Client()
    require.NoError(t, err)
    _, err = NewClient(time.Second).UseTLS(cliTLS).GetNodes(ctx, srv.Addr())
    assert.Error(t, err)
}
