package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openalpha/epoch-vault/api"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		faucet     bool
		noLimit    bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "vault-api",
		Short:        "Standalone epoch vault HTTP API with an in-memory ledger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger := log.NewLogger(os.Stderr, log.LevelOption(level))

			config, err := api.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// explicit flags win over the file
			flags := cmd.Flags()
			if flags.Changed("host") {
				config.Host = host
			}
			if flags.Changed("port") {
				config.Port = port
			}
			if flags.Changed("faucet") {
				config.EnableFaucet = faucet
			}
			if flags.Changed("no-rate-limit") {
				config.DisableRateLimit = noLimit
			}

			server, err := api.NewServer(config, logger)
			if err != nil {
				return err
			}

			logger.Info("vault api starting",
				"addr", config.Address(),
				"ws", "ws://"+config.Address()+"/ws",
				"pools", len(config.Pools),
			)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(sigCtx)
			g.Go(server.Start)
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Stop(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file with listener settings and bootstrap pools")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Server host")
	cmd.Flags().IntVar(&port, "port", 8080, "Server port (env "+api.EnvPort+" when the flag is unset)")
	cmd.Flags().BoolVar(&faucet, "faucet", false, "Expose POST /v1/faucet")
	cmd.Flags().BoolVar(&noLimit, "no-rate-limit", false, "Disable per-IP rate limiting")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
