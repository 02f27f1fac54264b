package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/opencode-ai/themekit/internal/metrics"
	"github.com/opencode-ai/themekit/internal/server"
	"github.com/opencode-ai/themekit/internal/style"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveNoRateLimit bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: metrics.addr)")
	serveCmd.Flags().BoolVar(&serveNoRateLimit, "no-rate-limit", false, "disable API rate limiting")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve themes, styles and Prometheus metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := GetConfig()
		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if _, err := metrics.Register(reg, rt.factory); err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Metrics.Addr
		}
		srv, err := server.New(rt.registry, rt.factory, reg, logging.Component("server"), server.Options{
			Addr: addr,
			StyleOptions: func(component string) style.Options {
				return componentOptions(cfg, component)
			},
			Limiter: server.NewRateLimiter(server.WithEnabled(!serveNoRateLimit)),
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}
