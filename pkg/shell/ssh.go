package shell

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "net"
    "os"
    "strconv"
    "strings"
    "time"

    "golang.org/x/crypto/ssh"
    "golang.org/x/crypto/ssh/knownhosts"
)

// SSHOptions configures the SSH shell.
type SSHOptions struct {
    User string
    // Port used when host carries none (default 22).
    Port int
    // KeyFile is a PEM private key; Password is used when KeyFile is empty.
    KeyFile  string
    Password string
    // KnownHosts enables host key verification; empty accepts any host key,
    // which matches how lab clusters are usually reinstalled.
    KnownHosts string
    // DialTimeout bounds connection setup (default 10s).
    DialTimeout time.Duration
}

// SSH executes commands on remote hosts, one connection per command.
type SSH struct {
    opts SSHOptions
    cfg  *ssh.ClientConfig
}

// NewSSH validates options and prepares the client configuration.
func NewSSH(opts SSHOptions) (*SSH, error) {
    if opts.User == "" { return nil, errors.New("shell: ssh user required") }
    if opts.Port == 0 { opts.Port = 22 }
    if opts.DialTimeout <= 0 { opts.DialTimeout = 10 * time.Second }

    var auth []ssh.AuthMethod
    switch {
    case opts.KeyFile != "":
        pem, err := os.ReadFile(opts.KeyFile)
        if err != nil { return nil, fmt.Errorf("shell: read key: %w", err) }
        signer, err := ssh.ParsePrivateKey(pem)
        if err != nil { return nil, fmt.Errorf("shell: parse key: %w", err) }
        auth = append(auth, ssh.PublicKeys(signer))
    case opts.Password != "":
        auth = append(auth, ssh.Password(opts.Password))
    default:
        return nil, errors.New("shell: ssh key file or password required")
    }

    hostKey := ssh.InsecureIgnoreHostKey()
    if opts.KnownHosts != "" {
        cb, err := knownhosts.New(opts.KnownHosts)
        if err != nil { return nil, fmt.Errorf("shell: known hosts: %w", err) }
        hostKey = cb
    }
    return &SSH{opts: opts, cfg: &ssh.ClientConfig{
        User:            opts.User,
        Auth:            auth,
        HostKeyCallback: hostKey,
        Timeout:         opts.DialTimeout,
    }}, nil
}

func (s *SSH) Exec(ctx context.Context, host, command string) (string, error) {
    if host == "" { return "", errors.New("shell: ssh requires a host") }
    addr := s.addr(host)
    d := net.Dialer{Timeout: s.opts.DialTimeout}
    conn, err := d.DialContext(ctx, "tcp", addr)
    if err != nil { return "", fmt.Errorf("shell: dial %s: %w", addr, err) }
    cc, chans, reqs, err := ssh.NewClientConn(conn, addr, s.cfg)
    if err != nil { _ = conn.Close(); return "", fmt.Errorf("shell: handshake %s: %w", addr, err) }
    client := ssh.NewClient(cc, chans, reqs)
    defer client.Close()

    sess, err := client.NewSession()
    if err != nil { return "", fmt.Errorf("shell: session %s: %w", addr, err) }
    defer sess.Close()

    var stdout, stderr bytes.Buffer
    sess.Stdout = &stdout
    sess.Stderr = &stderr

    done := make(chan error, 1)
    go func() { done <- sess.Run(command) }()
    select {
    case <-ctx.Done():
        _ = sess.Signal(ssh.SIGKILL)
        _ = client.Close()
        // Run owns the buffers until it returns
        <-done
        return "", ctx.Err()
    case err = <-done:
    }
    if err != nil {
        var ee *ssh.ExitError
        if errors.As(err, &ee) {
            return stdout.String(), &ExitError{Host: host, Command: command, Code: ee.ExitStatus(), Stderr: strings.TrimSpace(stderr.String())}
        }
        return stdout.String(), fmt.Errorf("shell: run on %s: %w", host, err)
    }
    return stdout.String(), nil
}

func (s *SSH) addr(host string) string {
    if _, _, err := net.SplitHostPort(host); err == nil { return host }
    return net.JoinHostPort(host, strconv.Itoa(s.opts.Port))
}

var _ Shell = (*SSH)(nil)
