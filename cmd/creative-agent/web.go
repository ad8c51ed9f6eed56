package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuannvm/mcp-creative-agent/internal/app"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/frontend"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the chat API and browser page",
	Long: `Serve the agent over HTTP.

  POST /chat   {"input": "...", "thread_id": "..."}  -> {"response": "..."}
  POST /clear  {"thread_id": "..."}                  -> {"message": "..."}
  GET  /tools, /healthz, /metrics, /

SIGHUP or SIGUSR1 reconnects the tool servers without dropping conversations.`,
	RunE: runWeb,
}

func runWeb(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()
	ctx := ensureContext(cmd.Context())

	logger.Info("Starting web server...")
	rt, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	server := frontend.NewHTTPServer(rt.agent, frontend.HTTPOptions{
		ThreadID:        rt.cfg.Agent.WebThreadID,
		RequestTimeout:  config.Duration(rt.cfg.Timeouts.HTTPRequestTimeout, 0),
		ShutdownTimeout: config.Duration(rt.cfg.Timeouts.ShutdownTimeout, 0),
		Servers:         rt.tools.Servers,
	}, logger)
	addr := fmt.Sprintf("%s:%d", rt.cfg.HTTP.Host, rt.cfg.HTTP.Port)

	return app.RunWithReload(ctx, logger, rt.cfg, func(appCtx context.Context) error {
		return server.Run(appCtx, addr)
	}, rt.reloadTools)
}
