package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/internal/adapter/llm"
	"ragchat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Start the HTTP server: a websocket chat endpoint at /ws/chat plus
REST endpoints for search and document management.

Examples:
  ragchat serve
  ragchat serve --config ./ragchat.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService(rootDir, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	model, err := llm.NewOpenAIChatModel(cfg.LLM.APIKeyEnv, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Sampling)
	if err != nil {
		return fmt.Errorf("failed to configure chat model: %w", err)
	}

	srv := server.New(cfg, svc, model, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
