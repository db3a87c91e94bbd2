package statusquery

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type fixedShell struct{ out string }

func (f fixedShell) Exec(context.Context, string, string) (string, error) { return f.out, nil }

func TestParse(t *testing.T) {
    out := `# cluster status
NODE      STATE
--------  -------
NODE-101  ONLINE
NODE-102  OFFLINE
103       online
`
    got, err := Parse(out)
    require.NoError(t, err)
    assert.Equal(t, []NodeStatus{{101, true}, {102, false}, {103, true}}, got)
}

func TestParse_Errors(t *testing.T) {
    _, err := Parse("101\n")
    assert.Error(t, err)
    _, err = Parse("101 ONLINE\n101 OFFLINE\n")
    assert.Error(t, err)
}

func TestCommand_Query(t *testing.T) {
    q := NewCommand(fixedShell{out: "101 IN\n102 OUT\n"}, "admin", "")
    got, err := q.Query(context.Background())
    require.NoError(t, err)
    assert.Equal(t, []NodeStatus{{101, true}, {102, false}}, got)
}
