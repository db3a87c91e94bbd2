package main

import (
    "log"

    "github.com/spf13/cobra"

    clustercli "github.com/amirimatin/go-clustercheck/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "clusterctl",
        Short:         "Lab cluster state checker and fault-injection helper",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    clustercli.AddAll(root)
    return root
}
