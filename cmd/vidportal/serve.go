package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/dmisol/vidportal"
	"github.com/dmisol/vidportal/token"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the landing and gallery pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if conf.Ws == "" {
			return errors.New("livekit ws url is not configured")
		}
		tokens, err := token.New(conf)
		if err != nil {
			return err
		}
		capturer, err := newCapturer(conf)
		if err != nil {
			return err
		}

		p := vidportal.NewPortal(ctx, conf, catalog, tokens, capturer)
		p.Poster = posterRenderer()

		srv := &fasthttp.Server{
			Handler: p.Handler(),
			Name:    "vidportal",
		}
		go func() {
			log.Info().Str("addr", conf.Listen).Int("videos", len(catalog)).Msg("vidportal started")
			if err := srv.ListenAndServe(conf.Listen); err != nil {
				log.Error().Err(err).Msg("server error")
				cancel()
			}
		}()

		<-ctx.Done()
		log.Info().Msg("shutting down")
		// closing the views ends the audio streams the server would wait for
		p.Shutdown()
		if err := srv.Shutdown(); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	_ = vp.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}
