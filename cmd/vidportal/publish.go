package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dmisol/vidportal/defs"
	"github.com/dmisol/vidportal/dummyclient"
	"github.com/dmisol/vidportal/token"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <video-id> [room]",
	Short: "Publish a catalogue video into a room without a browser",
	Long: `Joins the room (a fresh one named after the video when omitted) and
publishes the video from its start until it ends or the command is interrupted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad video id %q", args[0])
		}
		video, err := catalog.Find(id)
		if err != nil {
			return err
		}
		room := defs.NewRoomName(video)
		if len(args) == 2 {
			room = args[1]
		}

		tokens, err := token.New(conf)
		if err != nil {
			return err
		}
		capturer, err := newCapturer(conf)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		log.Info().Str("room", room).Msg("publishing")
		return dummyclient.Play(ctx, conf, tokens, capturer, video, room)
	},
}
