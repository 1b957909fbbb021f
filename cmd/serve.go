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

	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/internal/cmsmock"
	"github.com/agentic-research/blocktree/internal/config"
	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/mcpserver"
	"github.com/agentic-research/blocktree/internal/ui"
)

var (
	mockAddr       string
	mockAPIKey     string
	mockPrivateKey string
)

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8787", "Listen address")
	mockServerCmd.Flags().StringVar(&mockAPIKey, "api-key", "demo", "Accepted public API key")
	mockServerCmd.Flags().StringVar(&mockPrivateKey, "private-key", "demo-secret", "Accepted private key")
	rootCmd.AddCommand(tuiCmd, mcpCmd, mockServerCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal editor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		relay := ui.NewRelay()
		e, err := setup(ctx, true, editor.WithListener(relay.Listener()), editor.WithSaveStatus(relay.SaveStatus))
		if err != nil {
			return err
		}
		defer e.Close()

		return ui.Run(ctx, e.svc, ui.Options{
			Title:      e.cfg.Title,
			Relay:      relay,
			ConfigPath: resolvedConfigPath(),
			ReloadConfig: func() (string, error) {
				cfg, err := loadConfig(context.WithoutCancel(ctx), e.store)
				return cfg.Title, err
			},
			Logger: logger,
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve page trees to agents over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := setup(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		logger.Info("mcp server starting", "pages", len(e.svc.Pages(true)))
		return mcpserver.New(e.svc, Version, logger).Serve(ctx, os.Stdin, os.Stdout)
	},
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory content API with demo pages",
	Long: `Run an in-memory content API with demo pages. Point blocktree at it with
  BLOCKTREE_BASE_URL=http://<addr> BLOCKTREE_WRITE_URL=http://<addr> \
  BLOCKTREE_API_KEY=demo BLOCKTREE_PRIVATE_KEY=demo-secret blocktree pages list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mock := cmsmock.New(mockAPIKey, mockPrivateKey, cmsmock.DemoPages(), cmsmock.WithLogger(logger))
		srv := &http.Server{
			Addr:              mockAddr,
			Handler:           mock,
			ReadHeaderTimeout: config.DefaultTimeout,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		fmt.Fprintf(cmd.OutOrStdout(), "Mock content API listening on http://%s\n", mockAddr)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
