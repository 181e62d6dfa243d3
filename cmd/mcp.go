package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/server"
)

var (
	mcpTransport string
	mcpPort      int
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server",
	Long: `Run the MCP server over stdio or streamable HTTP.

Over HTTP each client gets its own session; a bearer token on the
initializing request signs that session in. Over stdio, use the sign_in tool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		a.run(ctx)

		deps := a.mcpDeps()
		switch mcpTransport {
		case "stdio":
			a.logger.Info("mcp server starting", zap.String("transport", "stdio"))
			return server.New(deps, nil).Run(ctx, &mcp.StdioTransport{})
		case "http":
			return serveMCPHTTP(ctx, a, deps)
		default:
			return fmt.Errorf("unknown transport: %s (use stdio or http)", mcpTransport)
		}
	},
}

func serveMCPHTTP(ctx context.Context, a *app, deps server.Deps) error {
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.New(deps, callerFromRequest(r, a))
	}, nil)

	addr := fmt.Sprintf("%s:%d", a.cfg.HTTP.Host, mcpPort)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("mcp server listening", zap.String("transport", "http"), zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Duration())
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown mcp server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// callerFromRequest signs a new session in from the request's bearer token.
// A missing or unknown token yields an anonymous session.
func callerFromRequest(r *http.Request, a *app) *identity.Caller {
	token, ok := identity.ParseBearer(r.Header.Get("Authorization"))
	if !ok {
		return nil
	}
	caller, err := a.auth.Authenticate(r.Context(), token)
	if err != nil {
		a.logger.Warn("mcp bearer token rejected", zap.String("remote_addr", r.RemoteAddr))
		return nil
	}
	return caller
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport mode: stdio or http")
	mcpCmd.Flags().IntVar(&mcpPort, "port", 8081, "HTTP port (only used with --transport http)")
	rootCmd.AddCommand(mcpCmd)
}
