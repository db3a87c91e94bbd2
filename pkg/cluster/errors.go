package cluster

import (
    "errors"
    "fmt"
    "strings"
)

var (
    ErrInconsistentView = errors.New("cluster: inconsistent cluster view")
    ErrBadLine          = errors.New("cluster: malformed verifier line")
    ErrUnknownLiveNode  = errors.New("cluster: live node outside configured cluster")
    ErrMissingNode      = errors.New("cluster: node missing from verifier output")
    ErrUnknownNode      = errors.New("cluster: no such node")
    ErrNoLiveNodes      = errors.New("cluster: no live nodes")
    ErrNoDiskControl    = errors.New("cluster: no disk control configured")
)

// VerificationError means the verifier could not produce a usable snapshot
// within the permitted attempts. Model state is left untouched.
type VerificationError struct {
    Attempts int
    Err      error
    Dump     string
}

func (e *VerificationError) Error() string {
    return fmt.Sprintf("cluster: verification failed after %d attempt(s): %v; state %s", e.Attempts, e.Err, e.Dump)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// CrossCheckError means the verifier and the status query disagree about
// which nodes are cluster members. Model state is left untouched.
type CrossCheckError struct {
    Mismatches []string
    // Observed is the verifier view that was rejected.
    Observed string
    Dump     string
}

func (e *CrossCheckError) Error() string {
    return fmt.Sprintf("cluster: verifier and status query disagree (%s); observed %s; state %s",
        strings.Join(e.Mismatches, "; "), e.Observed, e.Dump)
}

// CollaboratorError wraps a transport failure of an external collaborator
// (status query, disk control). It is not retried.
type CollaboratorError struct {
    Op   string
    Err  error
    Dump string
}

func (e *CollaboratorError) Error() string {
    return fmt.Sprintf("cluster: %s: %v; state %s", e.Op, e.Err, e.Dump)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
