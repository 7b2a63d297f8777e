package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dmisol/vidportal/dummyclient"
	"github.com/dmisol/vidportal/token"
	"github.com/spf13/cobra"
)

var observeDir string

var observeCmd = &cobra.Command{
	Use:   "observe <room>",
	Short: "Join a room and record every track published in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := token.New(conf)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return dummyclient.Observe(ctx, conf, tokens, args[0], observeDir)
	},
}

func init() {
	observeCmd.Flags().StringVar(&observeDir, "dir", "recordings", "where to write the tracks")
}
