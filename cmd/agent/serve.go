package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hr-agent/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat, leave form and dashboard over HTTP",
		Long: `Start the HTTP API.

Examples:
  hr-agent serve
  hr-agent serve --addr :9000 --log-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http_addr)")
	return cmd
}

func runServe(parent context.Context, addr string) error {
	rt, err := bootstrap(bootOptions{withChat: true})
	if err != nil {
		return err
	}
	defer rt.close()
	if strings.TrimSpace(addr) != "" {
		rt.cfg.HTTPAddr = strings.TrimSpace(addr)
	}
	if rt.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(server.Deps{
		Chat:     rt.chat,
		Leave:    rt.leave,
		Sessions: rt.sessions,
		Bus:      rt.bus,
		Metrics:  rt.metrics,
		Logger:   rt.log,
		Checks:   []server.Check{{Name: "storage", Fn: rt.store.Ping}},
	})
	httpSrv := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Infow("http server listening", "addr", rt.cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.log.Infow("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	rt.log.Infow("server stopped", "summary", rt.metrics.Snapshot().String())
	return nil
}
