package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stefanpenner/horizon/pkg/api"
	"github.com/stefanpenner/horizon/pkg/backend"
	"github.com/stefanpenner/horizon/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dir     string
	addr    string
	backend string
	dsn     string
	rps     float64
	burst   int
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "horizond",
		Short:        "Serve horizon goal lists over HTTP",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
	cmd.Flags().StringVar(&o.dir, "dir", "", "Data directory holding config.yaml")
	cmd.Flags().StringVar(&o.addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&o.backend, "backend", "", "Storage backend: memory, sqlite, postgres or redis")
	cmd.Flags().StringVar(&o.dsn, "dsn", "", "Backend connection string or file path")
	cmd.Flags().Float64Var(&o.rps, "rate-limit", 0, "Requests per second allowed per client (0 keeps the config value)")
	cmd.Flags().IntVar(&o.burst, "burst", 0, "Burst size per client (0 keeps the config value)")
	return cmd
}

// config loads config.yaml and applies the flags that were set.
func (o *options) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.dir)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if f.Changed("backend") {
		cfg.Server.Backend = o.backend
	}
	if f.Changed("dsn") {
		cfg.Server.DSN = o.dsn
	}
	if f.Changed("rate-limit") {
		cfg.Server.RateLimitRPS = o.rps
	}
	if f.Changed("burst") {
		cfg.Server.RateLimitBurst = o.burst
	}
	return cfg, nil
}

// serve runs the API until ctx is done. When ready is non-nil it receives the
// bound address once the listener is up.
func serve(ctx context.Context, cfg config.Config, ready chan<- string) error {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	b, err := backend.Open(ctx, cfg.Server.Backend, cfg.Server.DSN)
	if err != nil {
		return err
	}
	defer b.Close()

	srv := api.New(b, api.Options{
		Logger:         log,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	hs := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	log.Info("horizond listening", "addr", ln.Addr().String(), "backend", cfg.Server.Backend)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
