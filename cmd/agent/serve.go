package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petasbytes/chatloop/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve runs over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		base := a.request()
		srv := &server.Server{
			Runner:       a.runner,
			Tools:        base.Tools,
			ToolHandler:  base.ToolHandler,
			Model:        base.Model,
			RunLoopLimit: base.RunLoopLimit,
			Logger:       a.log,
		}
		return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
	},
}
