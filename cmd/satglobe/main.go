// Command satglobe serves the interactive satellite globe: it polls the
// remote position service, keeps the scene on a frame loop and streams it to
// browser viewers.
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
	"golang.org/x/sync/errgroup"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/api"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/catalog"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/stream"
	"github.com/k-boateng/satellite-pass-predictionv2/web"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "satglobe",
	Short: "Serve a live 3D globe of tracked satellites",
	Long: `satglobe samples satellites from the remote position service, polls
each one on its own jittered interval and serves the rendered scene to
browser viewers over SSE and websockets.

Every flag can also be set through its SATGLOBE_* environment variable;
flags take precedence.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(),
		}))

		srvCfg := loadServerConfig(logger)
		if cmd.Flags().Changed("addr") {
			srvCfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("api-base") {
			srvCfg.APIBase, _ = cmd.Flags().GetString("api-base")
		}

		globeCfg := loadGlobeConfig(logger)
		if cmd.Flags().Changed("geojson") {
			globeCfg.Boundaries, _ = cmd.Flags().GetString("geojson")
		}
		if cmd.Flags().Changed("sample-size") {
			globeCfg.Swarm.SampleSize, _ = cmd.Flags().GetInt("sample-size")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, logger, srvCfg, globeCfg)
	},
}

func init() {
	rootCmd.Flags().String("addr", ":8080", "HTTP listen address (SATGLOBE_HTTP_ADDR)")
	rootCmd.Flags().String("api-base", "http://127.0.0.1:8000", "Remote position service base URL (SATGLOBE_API_BASE)")
	rootCmd.Flags().String("geojson", "", "Country boundary GeoJSON file or URL (SATGLOBE_GEOJSON)")
	rootCmd.Flags().Int("sample-size", 400, "Satellites to display (SATGLOBE_SAMPLE_SIZE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, srvCfg serverConfig, globeCfg globe.Config) error {
	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		return err
	}
	poolCfg := loadPoolConfig(logger)
	streamCfg := loadStreamConfig(logger, srvCfg.TrustProxy)

	client := satapi.NewClient(srvCfg.APIBase, logger)

	var poolCache *catalog.Cache
	if poolCfg.CacheDir != "" {
		poolCache = catalog.NewCache(poolCfg.CacheDir, poolCfg.MaxFiles)
	}
	pools := catalog.NewLoader(client, poolCache, poolCfg.Limit, logger)

	g := globe.New(globeCfg, client, pools, logger)
	streams := stream.NewHandler(g, streamCfg, logger)

	opts := api.Options{
		Addr:       srvCfg.Addr,
		Auth:       authCfg,
		TrustProxy: srvCfg.TrustProxy,
	}
	if srvCfg.ServeViewer {
		opts.Static = web.Content
	}
	srv := api.NewServer(opts, logger, g, streams)

	eg, egCtx := errgroup.WithContext(ctx)
	// Long-lived streams end with the process context so Shutdown can drain them.
	srv.HTTPServer().BaseContext = func(net.Listener) context.Context { return egCtx }

	eg.Go(func() error {
		g.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		if err := g.Start(egCtx); err != nil && egCtx.Err() == nil {
			return fmt.Errorf("start globe: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		logger.Info("starting server",
			"addr", srvCfg.Addr,
			"api_base", srvCfg.APIBase,
			"auth_enabled", authCfg.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		g.Close()
		return err
	})

	err = eg.Wait()
	logger.Info("server stopped")
	return err
}
