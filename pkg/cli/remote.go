package cli

import (
    "context"
    "fmt"
    "time"

    "github.com/spf13/cobra"

    tlsx "github.com/amirimatin/go-clustercheck/pkg/security/tlsconfig"
    "github.com/amirimatin/go-clustercheck/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-clustercheck/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-clustercheck/pkg/transport/httpjson"
)

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    return newFetchCmd("status", "Fetch model status from a watching checker as JSON", transport.RPCClient.GetStatus)
}

// NewNodesCmd returns the "nodes" command.
func NewNodesCmd() *cobra.Command {
    return newFetchCmd("nodes", "Fetch per-node membership from a checker or status agent as JSON", transport.RPCClient.GetNodes)
}

func newFetchCmd(use, short string, get func(transport.RPCClient, context.Context, string) ([]byte, error)) *cobra.Command {
    var (
        addr, mgmtProto string
        timeout         time.Duration
        topts           tlsx.Options
    )
    cmd := &cobra.Command{
        Use:   use,
        Short: short,
        RunE: func(cmd *cobra.Command, args []string) error {
            cliTLS, err := topts.Client()
            if err != nil { return fmt.Errorf("tls client config: %w", err) }
            var client transport.RPCClient
            switch mgmtProto {
            case "grpc":
                c := mgmtgrpc.NewClient(timeout).UseTLS(cliTLS)
                defer c.Close()
                client = c
            default:
                client = httpjson.NewClient(timeout).UseTLS(cliTLS)
            }
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            data, err := get(client, ctx, addr)
            if err != nil { return fmt.Errorf("%s error: %w", use, err) }
            w := cmd.OutOrStdout()
            _, _ = w.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' { _, _ = w.Write([]byte("\n")) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17946", "management address (host:port)")
    cmd.Flags().StringVar(&mgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&topts.Enable, "tls-enable", false, "use TLS for the management API")
    cmd.Flags().StringVar(&topts.CAFile, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&topts.CertFile, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&topts.KeyFile, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().StringVar(&topts.ServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    cmd.Flags().BoolVar(&topts.InsecureSkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    return cmd
}
