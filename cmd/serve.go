package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geocoder-cli/internal/server"
	"github.com/sells-group/geocoder-cli/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server exposing the geocoder",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		session, err := geocode.NewSession(cfg.SessionOptions())
		if err != nil {
			return err
		}
		defer session.Close()

		port := servePort
		if port == 0 {
			port = cfg.Serve.Port
		}

		srv := server.New(session, port)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			sctx, cancel := shutdownContext(shutdownGrace)
			defer cancel()
			srv.Shutdown(sctx)
		}()

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

const shutdownGrace = 10 * time.Second

// shutdownContext is detached from the signal context: the cancellation that
// triggers the shutdown must not also cut the drain window to zero.
func shutdownContext(grace time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), grace)
}
