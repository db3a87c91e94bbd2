package cluster

import (
    "bufio"
    "fmt"
    "strconv"
    "strings"
    "unicode"
)

// ConsistentMarker is printed by the verifier once every node agrees on the
// membership view. Everything before it is progress chatter.
const ConsistentMarker = "CLUSTER CONSISTENT"

// observation is one verifier data line.
type observation struct {
    suffix         int
    diskFlag       string
    alive          bool
    master         bool
    vice           bool
    services       string
    masterServices string
}

// parseVerifierOutput extracts node lines following the consistency marker.
// A heading row right after the marker is skipped.
func parseVerifierOutput(out string) ([]observation, error) {
    s := bufio.NewScanner(strings.NewReader(out))
    found := false
    for s.Scan() {
        if strings.Contains(s.Text(), ConsistentMarker) { found = true; break }
    }
    if !found { return nil, ErrInconsistentView }

    var obs []observation
    seen := make(map[int]struct{})
    first := true
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" { continue }
        toks := tokenize(line)
        if first {
            first = false
            if _, ok := suffixOf(toks[0].text); !ok { continue }
        }
        o, err := parseLine(toks)
        if err != nil { return nil, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err) }
        if _, dup := seen[o.suffix]; dup {
            return nil, fmt.Errorf("%w: %q: node %d reported twice", ErrBadLine, line, o.suffix)
        }
        seen[o.suffix] = struct{}{}
        obs = append(obs, o)
    }
    if err := s.Err(); err != nil { return nil, err }
    return obs, nil
}

// parseLine reads "<node> [<disks>] <alive|dead> [<master|vicemaster>] [<services> <masterServices>]".
// The role is only taken from a bare word; a bracketed group is a service list.
func parseLine(toks []token) (observation, error) {
    var o observation
    suffix, ok := suffixOf(toks[0].text)
    if !ok { return o, fmt.Errorf("bad node %q", toks[0].text) }
    o.suffix = suffix
    i := 1
    if i < len(toks) && !isLiveness(toks[i]) {
        o.diskFlag = toks[i].text
        i++
    }
    if i >= len(toks) || !isLiveness(toks[i]) { return o, fmt.Errorf("no alive/dead status") }
    o.alive = strings.EqualFold(toks[i].text, "alive")
    i++
    if i < len(toks) && !toks[i].grouped {
        switch strings.ToLower(toks[i].text) {
        case "master":
            o.master = true
            i++
        case "vicemaster":
            o.vice = true
            i++
        }
    }
    rest := toks[i:]
    if len(rest) > 2 { return o, fmt.Errorf("unexpected trailing fields %v", texts(rest[2:])) }
    if len(rest) > 0 { o.services = rest[0].text }
    if len(rest) > 1 { o.masterServices = rest[1].text }
    return o, nil
}

func isLiveness(tok token) bool {
    return !tok.grouped && (strings.EqualFold(tok.text, "alive") || strings.EqualFold(tok.text, "dead"))
}

// suffixOf reads a node identifier, allowing a "NODE-" style prefix.
func suffixOf(tok string) (int, bool) {
    if i := strings.LastIndexAny(tok, "-_"); i >= 0 { tok = tok[i+1:] }
    n, err := strconv.Atoi(tok)
    if err != nil || n <= 0 { return 0, false }
    return n, true
}

// token is one field of a verifier line. grouped marks a bracketed group.
type token struct {
    text    string
    grouped bool
}

func texts(toks []token) []string {
    out := make([]string, len(toks))
    for i, t := range toks { out[i] = t.text }
    return out
}

// tokenize splits on whitespace; a bracketed group is a single grouped token
// with the brackets removed, so "[a b]" and "[]" survive as "a b" and "".
func tokenize(line string) []token {
    var toks []token
    var cur strings.Builder
    inTok := false
    flush := func() {
        if inTok { toks = append(toks, token{text: cur.String()}); cur.Reset(); inTok = false }
    }
    for i := 0; i < len(line); i++ {
        c := line[i]
        switch {
        case c == '[':
            flush()
            end := strings.IndexByte(line[i+1:], ']')
            if end < 0 { end = len(line) - i - 1 }
            toks = append(toks, token{text: strings.TrimSpace(line[i+1:i+1+end]), grouped: true})
            i += end + 1
        case unicode.IsSpace(rune(c)):
            flush()
        default:
            cur.WriteByte(c)
            inTok = true
        }
    }
    flush()
    return toks
}
