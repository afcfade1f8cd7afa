package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/haivivi/identag/cmd/identag/internal/build"
	"github.com/haivivi/identag/cmd/identag/internal/config"
	"github.com/haivivi/identag/pkg/server"
)

var (
	serveFile string
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tagger over HTTP",
	Long: `Load the model, embeddings and dictionary named in serve.yaml and serve:

  GET /tag/{identifier}/{context}              tag without caching
  GET /tag/{identifier}/{context}/{namespace}  tag through a cache namespace
  GET /probe/{namespace}                       report whether a namespace exists
  GET /healthz                                 liveness
  GET /metrics                                 Prometheus metrics

Examples:
  identag serve
  identag serve -f serve.yaml --addr :5000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveFile)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		if !IsVerbose() {
			level, _ := cfg.Level()
			logLevel.Set(level)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		logger := slog.Default()
		rt, err := loadRuntime(ctx, cfg, reg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Warn("close cache", "error", err)
			}
		}()

		srv := server.New(cfg.Addr, rt.Service, server.Options{
			Gatherer: reg,
			Logger:   logger,
			Version:  build.Version,
		})
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFile, "file", "f", "", "serve config YAML (default: <config dir>/serve.yaml)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides addr in the config)")
	rootCmd.AddCommand(serveCmd)
}
