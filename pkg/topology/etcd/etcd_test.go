package etcd

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestHostsFromPairs(t *testing.T) {
    got := hostsFromPairs(DefaultPrefix, [][2]string{
        {DefaultPrefix + "3", "hcb103"},
        {DefaultPrefix + "1", "hcb101"},
        {DefaultPrefix + "hcb102", ""},
        {DefaultPrefix + "", " "},
    })
    assert.Equal(t, []string{"hcb101", "hcb103", "hcb102"}, got)
}

func TestNew_RequiresEndpoints(t *testing.T) {
    _, err := New(Options{})
    assert.Error(t, err)
}
