package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	httpserver "github.com/kellywsq03/RAGify/internal/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index, query and upload endpoints over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			// Uploads are optional; without Supabase credentials the
			// upload endpoints answer 503.
			var files httpserver.FileStore
			uploader, err := newUploader(a.cfg, a.logger)
			switch {
			case err == nil:
				files = uploader
			case errors.Is(err, config.ErrConfigurationMissing):
				a.logger.Warn("uploads disabled", zap.Error(err))
			default:
				return err
			}

			srv, err := httpserver.NewServer(a.service, files, a.logger, &httpserver.Config{
				Host:        a.cfg.Server.Host,
				Port:        a.cfg.Server.Port,
				MaxUploadMB: a.cfg.Server.MaxUploadMB,
				RateLimit:   a.cfg.Server.RateLimit,
				RateBurst:   a.cfg.Server.RateBurst,
				PDFRoot:     a.cfg.Server.PDFRoot,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx, a.cfg.Server.ShutdownTimeout.Duration())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.http_host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.http_port)")
	return cmd
}
