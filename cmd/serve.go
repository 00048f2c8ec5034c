package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/api"
	"github.com/KaramelBytes/dataglimpse/internal/auth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr     string
	serveProvider string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the guest session sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		resolver, err := auth.NewResolver(cfg.APITokens)
		if err != nil {
			return err
		}
		insights, err := a.insights(serveProvider, "")
		if err != nil {
			return err
		}
		h := &api.Handler{
			Datasets:       a.datasets,
			Visualizations: a.vizs,
			Ingestor:       a.ingestor,
			Migrator:       a.migrator,
			Insights:       insights,
			Auth:           resolver,
			Log:            log,
			MaxUploadBytes: a.limits.MaxUploadBytes,
			CORSOrigins:    cfg.CORSOrigins,
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           h.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("http server listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error { return a.sweeper.Run(gctx, cfg.SweepInterval) })
		err = g.Wait()
		log.Info("server stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "narrative provider: openrouter|ollama")
}
