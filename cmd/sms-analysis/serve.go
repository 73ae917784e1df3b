package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sms-decline-analysis/internal/api"
	"sms-decline-analysis/internal/api/handler"
	"sms-decline-analysis/internal/store"
	"sms-decline-analysis/pkg/router"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
}

func serve(cmd *cobra.Command, args []string) error {
	if addr != "" {
		cfg.Server.Addr = addr
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := handler.New(db, cfg)
	r := router.New()
	api.RegisterRoutes(r, h)

	err = r.Start(ctx, cfg.Server.Addr)
	h.CancelAll()
	h.Wait()
	return err
}
