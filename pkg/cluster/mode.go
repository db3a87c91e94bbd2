package cluster

import (
    "fmt"
    "strings"

    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

// Mode is the run mode of the cluster under test. It decides how the
// verifier is invoked and whether the status query cross-check applies.
type Mode int

const (
    ModeFullStack Mode = iota + 1
    ModeCMMOnly
    ModeCMMOnlyWithMailbox
    ModeCMMSingle
    ModeCMMWithSniffer
)

var modeNames = map[Mode]string{
    ModeFullStack:          "full",
    ModeCMMOnly:            "cmm-only",
    ModeCMMOnlyWithMailbox: "cmm-only-mailbox",
    ModeCMMSingle:          "cmm-single",
    ModeCMMWithSniffer:     "cmm-sniffer",
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
    s = strings.ToLower(strings.TrimSpace(s))
    for m, name := range modeNames {
        if name == s { return m, nil }
    }
    return 0, fmt.Errorf("cluster: unknown run mode %q", s)
}

func (m Mode) String() string {
    if name, ok := modeNames[m]; ok { return name }
    return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) Valid() bool { _, ok := modeNames[m]; return ok }

func (m Mode) MarshalText() ([]byte, error) {
    if !m.Valid() { return nil, fmt.Errorf("cluster: invalid run mode %d", int(m)) }
    return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
    v, err := ParseMode(string(b))
    if err != nil { return err }
    *m = v
    return nil
}

// verifierMode selects the verifier dialect for this run mode.
func (m Mode) verifierMode() verifier.Mode {
    switch m {
    case ModeFullStack:
        return verifier.ModeNodeMgr
    default:
        return verifier.ModeCMMOnly
    }
}

// crossChecks reports whether refresh consults the status query. Only the full
// stack runs the services the status query reads from.
func (m Mode) crossChecks() bool {
    switch m {
    case ModeFullStack:
        return true
    default:
        return false
    }
}
