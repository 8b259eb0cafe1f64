package commands

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/runner/mcp"
)

type mcpOptions struct {
	Transport string
	Host      string
	Port      int
	Path      string
	TLSCert   string
	TLSKey    string
}

func (o *mcpOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Transport, "transport", string(mcp.TransportHTTP), "transport to use: http or stdio")
	cmd.Flags().StringVar(&o.Host, "http-host", "127.0.0.1", "host/interface for HTTP transport")
	cmd.Flags().IntVar(&o.Port, "http-port", 8080, "port for HTTP transport (use 0 for random)")
	cmd.Flags().StringVar(&o.Path, "http-path", "/mcp", "HTTP endpoint path")
	cmd.Flags().StringVar(&o.TLSCert, "http-tls-cert", "", "TLS certificate file for HTTPS")
	cmd.Flags().StringVar(&o.TLSKey, "http-tls-key", "", "TLS private key file for HTTPS")
}

// announce prints a reachable URL for the bound listener.
func (o *mcpOptions) announce(cmd *cobra.Command, tls bool) func(net.Addr) {
	return func(a net.Addr) {
		scheme := "http"
		if tls {
			scheme = "https"
		}
		host := o.Host
		port := strconv.Itoa(o.Port)
		if tcp, ok := a.(*net.TCPAddr); ok {
			port = strconv.Itoa(tcp.Port)
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
		}
		path := o.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on %s://%s%s\n", scheme, net.JoinHostPort(host, port), path)
	}
}

func addMCP(topLevel *cobra.Command) {
	o := &mcpOptions{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "start the Model Context Protocol server",
		Long: `Launch an MCP server that exposes the clock state, missed windows, entries and
logging tools through the Model Context Protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if o.Port < 0 || o.Port > 65535 {
				return fmt.Errorf("invalid http-port %d", o.Port)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r := mcp.Runner{
				App:              e.App,
				Name:             "tock",
				Version:          version,
				Transport:        mcp.Transport(strings.ToLower(strings.TrimSpace(o.Transport))),
				HTTPListenAddr:   net.JoinHostPort(strings.TrimSpace(o.Host), strconv.Itoa(o.Port)),
				HTTPEndpointPath: strings.TrimSpace(o.Path),
				HTTPServerCert:   strings.TrimSpace(o.TLSCert),
				HTTPServerKey:    strings.TrimSpace(o.TLSKey),
			}
			r.OnHTTPListening = o.announce(cmd, r.HTTPServerCert != "")
			return r.Do(cmd.Context())
		},
	}
	o.addFlags(cmd)

	topLevel.AddCommand(cmd)
}
