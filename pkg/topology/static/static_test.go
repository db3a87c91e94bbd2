package static

import (
    "context"
    "testing"

    "github.com/amirimatin/go-clustercheck/pkg/topology"
)

func TestParse(t *testing.T) {
    cases := []struct{
        in   string
        want []string
    }{
        {"", nil},
        {"hcb101", []string{"hcb101"}},
        {" hcb101 , hcb102 ", []string{"hcb101","hcb102"}},
        {",,hcb101, ,hcb102,", []string{"hcb101","hcb102"}},
    }
    for _, c := range cases {
        got := Parse(c.in)
        if len(got) != len(c.want) {
            t.Fatalf("len mismatch for %q: got %d want %d", c.in, len(got), len(c.want))
        }
        for i := range got {
            if got[i] != c.want[i] {
                t.Fatalf("[%q] item %d: got %q want %q", c.in, i, got[i], c.want[i])
            }
        }
    }
}

func TestNewAndSize(t *testing.T) {
    d := New(" hcb101 ", "", "hcb102")
    got, _ := d.Nodes(context.Background())
    if len(got) != 2 || got[0] != "hcb101" || got[1] != "hcb102" {
        t.Fatalf("unexpected hosts: %#v", got)
    }
    got[0] = "x"
    got2, _ := d.Nodes(context.Background())
    if got2[0] != "hcb101" { t.Fatalf("expected a copy, got %#v", got2) }

    n, err := topology.Size(context.Background(), d)
    if err != nil || n != 2 { t.Fatalf("size = %d, %v", n, err) }
    if _, err := topology.Size(context.Background(), New()); err != topology.ErrEmpty {
        t.Fatalf("expected ErrEmpty, got %v", err)
    }
}
