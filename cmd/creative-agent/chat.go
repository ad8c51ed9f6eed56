package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuannvm/mcp-creative-agent/internal/frontend"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long: `Start an interactive chat on the terminal.

Commands inside the chat:
  clear   forget the conversation so far
  tools   list the available tools
  exit    leave (also: quit)`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()
	ctx, stop := signal.NotifyContext(ensureContext(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Initializing chat...")
	rt, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()
	serveMetrics(ctx, rt.cfg, logger)

	cli := frontend.NewCLI(rt.agent, rt.cfg.Agent.CLIThreadID, logger)
	cli.Output = cmd.OutOrStdout()
	return cli.Run(ctx)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
