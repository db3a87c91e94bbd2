package shell

import (
    "bytes"
    "context"
    "fmt"
    "os/exec"
    "strings"
    "time"
)

// Shell runs a command line on a host and returns its stdout. It is the single
// point through which status tools and fault-injection scripts are invoked.
type Shell interface {
    Exec(ctx context.Context, host, command string) (string, error)
}

// ExitError reports a command that ran but exited non-zero. Stderr carries
// whatever the command printed, trimmed.
type ExitError struct {
    Host    string
    Command string
    Code    int
    Stderr  string
}

func (e *ExitError) Error() string {
    where := e.Host
    if where == "" { where = "local" }
    if e.Stderr == "" {
        return fmt.Sprintf("shell: %q on %s exited %d", e.Command, where, e.Code)
    }
    return fmt.Sprintf("shell: %q on %s exited %d: %s", e.Command, where, e.Code, e.Stderr)
}

// Local executes commands through "sh -c" on this machine. The host argument
// is ignored, which makes Local usable as the verifier override path.
type Local struct {
    // Shell overrides the interpreter (default "sh").
    Shell string
}

func (l Local) Exec(ctx context.Context, host, command string) (string, error) {
    sh := l.Shell
    if sh == "" { sh = "sh" }
    cmd := exec.CommandContext(ctx, sh, "-c", command)
    // children may hold the pipes open after sh is killed
    cmd.WaitDelay = time.Second
    var stdout, stderr bytes.Buffer
    cmd.Stdout = &stdout
    cmd.Stderr = &stderr
    err := cmd.Run()
    if err != nil {
        if ee, ok := err.(*exec.ExitError); ok {
            return stdout.String(), &ExitError{Command: command, Code: ee.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
        }
        return stdout.String(), fmt.Errorf("shell: run %q: %w", command, err)
    }
    return stdout.String(), nil
}

var _ Shell = Local{}
