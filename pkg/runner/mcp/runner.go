package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/tock/pkg/app"
)

// Transport selects the mechanism used to expose the MCP server.
type Transport string

const (
	// TransportHTTP serves MCP via the streamable HTTP transport.
	TransportHTTP Transport = "http"
	// TransportStdio serves MCP over stdio.
	TransportStdio Transport = "stdio"
)

// Runner coordinates MCP server startup.
type Runner struct {
	App     *app.Service
	Name    string
	Version string

	Transport        Transport
	HTTPListenAddr   string
	HTTPEndpointPath string
	OnHTTPListening  func(net.Addr)
	HTTPServerCert   string
	HTTPServerKey    string
}

// Do executes the runner.
func (r Runner) Do(ctx context.Context) error {
	if r.App == nil || r.App.Persistence == nil {
		return errors.New("mcp runner requires persistence")
	}
	name := r.Name
	if name == "" {
		name = "tock"
	}
	version := r.Version
	if version == "" {
		version = "dev"
	}

	srv := r.Server(name, version)

	switch t := r.Transport; t {
	case "", TransportHTTP:
		return r.serveHTTP(ctx, srv)
	case TransportStdio:
		return server.ServeStdio(srv)
	default:
		return fmt.Errorf("unknown MCP transport %q", t)
	}
}

// Server builds the MCP server with every tock tool and resource registered.
func (r Runner) Server(name, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		fmt.Sprintf("%s MCP", name),
		version,
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(false),
		server.WithInstructions("Read the interval clock, list missed windows, and log or back-fill entries."),
		server.WithResourceRecovery(),
		server.WithRecovery(),
	)

	svc := NewService(r.App)
	registerResources(srv, svc)
	registerTools(srv, svc)
	return srv
}

// endpoint is the HTTP path the streamable handler is mounted on.
func (r Runner) endpoint() string {
	path := r.HTTPEndpointPath
	if path == "" {
		return "/mcp"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (r Runner) serveHTTP(ctx context.Context, srv *server.MCPServer) error {
	tls := r.HTTPServerCert != "" || r.HTTPServerKey != ""
	if tls && (r.HTTPServerCert == "" || r.HTTPServerKey == "") {
		return errors.New("both http tls cert and key must be provided")
	}
	addr := r.HTTPListenAddr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	mux := http.NewServeMux()
	mux.Handle(r.endpoint(), server.NewStreamableHTTPServer(srv))
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if r.OnHTTPListening != nil {
		r.OnHTTPListening(ln.Addr())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls {
			err = httpSrv.ServeTLS(ln, r.HTTPServerCert, r.HTTPServerKey)
		} else {
			err = httpSrv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdown)
	})
	return g.Wait()
}
