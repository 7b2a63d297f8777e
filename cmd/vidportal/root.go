package main

import (
	"fmt"
	"os"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	vp      = defs.NewViper()
	conf    *defs.PortalConf
	catalog defs.Catalog
)

var rootCmd = &cobra.Command{
	Use:   "vidportal",
	Short: "Republishes sample videos into LiveKit rooms for a realtime AI commentator.",
	Long: `vidportal serves a small gallery of sample videos. Whatever the viewer plays
is captured on the server and published into a LiveKit room, where an AI
commentator can watch it and talk back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if conf, err = defs.LoadConf(vp, cfgFile); err != nil {
			return err
		}
		setupLogging(conf.LogLevel)
		if catalog, err = defs.LoadCatalog(conf.Catalog); err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String("ws", "", "LiveKit websocket url")
	rootCmd.PersistentFlags().String("catalog", "", "yaml file with the videos")
	rootCmd.PersistentFlags().String("capture", defs.CaptureFFmpeg, "capture backend: ffmpeg or native")

	_ = vp.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = vp.BindPFlag("ws", rootCmd.PersistentFlags().Lookup("ws"))
	_ = vp.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = vp.BindPFlag("capture", rootCmd.PersistentFlags().Lookup("capture"))

	rootCmd.AddCommand(serveCmd, videosCmd, publishCmd, observeCmd)
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func newCapturer(c *defs.PortalConf) (capture.Capturer, error) {
	switch c.Capture {
	case defs.CaptureFFmpeg:
		return capture.NewFFmpeg(c.FFmpeg), nil
	case defs.CaptureNative:
		return newNative()
	}
	return nil, fmt.Errorf("unknown capture backend %q", c.Capture)
}
