package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/internal/server"
	"github.com/kpauljoseph/pagedesk/pkg/version"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve <file.pdf>",
		Short: "Serve an editing session over HTTP and websocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, cleanup, err := a.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(sess, server.Config{
				OriginPatterns: origins,
				Logger:         a.log.Named("server"),
			})
			a.log.Info("%s editing %s (session %s)", version.GetVersionInfo(), args[0], sess.ID())
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed websocket origin patterns")
	return cmd
}
