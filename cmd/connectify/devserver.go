package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/mockapi"
)

func newDevServerCmd(o *rootOptions) *cobra.Command {
	var (
		addr   string
		seed   int64
		posts  int
		secret string
	)

	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory Connectify backend",
		Long: `Run an in-memory backend that speaks the Connectify REST API, seeded with
fake users and posts. Data is lost on exit. Intended for local development and
demos; it is not a production server.

Examples:
  connectify dev-server
  connectify dev-server --addr 127.0.0.1:8000 --seed 7 --posts 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app

			host, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				return fmt.Errorf("invalid --addr %q: %w", addr, err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("invalid --addr port %q: %w", portStr, err)
			}

			store := mockapi.NewStore()
			if err := mockapi.Seed(store, mockapi.SeedOptions{Seed: seed, Posts: posts}); err != nil {
				return fmt.Errorf("seeding: %w", err)
			}

			cfg := mockapi.DefaultConfig()
			cfg.Host, cfg.Port = host, port
			if secret != "" {
				cfg.Secret = []byte(secret)
			}
			cfg.TracerProvider = a.tel.TracerProvider()
			cfg.MeterProvider = a.tel.MeterProvider()

			logger := a.logger.Named("devserver").Underlying()
			srv, err := mockapi.NewServer(store, logger, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			users, n := store.Stats()
			cmd.Printf("Connectify dev server on http://%s (%d users, %d posts)\n", cfg.Addr(), users, n)
			cmd.Printf("Demo account: %s / %s\n", mockapi.DemoEmail, mockapi.DemoPassword)
			cmd.Println("Press Ctrl+C to stop")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("dev server shutdown", zap.Error(err))
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7000", "listen address")
	cmd.Flags().Int64Var(&seed, "seed", 1, "seed for generated content")
	cmd.Flags().IntVar(&posts, "posts", 30, "number of generated posts")
	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret (default: a fixed development secret)")
	return cmd
}
