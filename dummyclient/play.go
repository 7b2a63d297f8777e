package dummyclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/dmisol/vidportal/relay"
	"github.com/dmisol/vidportal/token"
	"github.com/rs/zerolog/log"
)

// Play publishes v into room from the start, without a browser, and returns
// once every track is drained or ctx is done.
func Play(ctx context.Context, c *defs.PortalConf, tokens token.Source, capturer capture.Capturer, v *defs.Video, room string) error {
	tok, err := tokens.Fetch(ctx, room)
	if err != nil {
		return err
	}
	r, err := relay.Connect(ctx, c.Ws, tok, c.MaxRetries, relay.Callbacks{})
	if err != nil {
		return err
	}
	defer r.Close()

	stream, err := capturer.Capture(ctx, v, 0)
	if err != nil {
		return err
	}
	defer stream.Stop()

	var wg sync.WaitGroup
	for _, src := range stream.Sources() {
		src := src
		wg.Add(1)
		var sid string
		var once sync.Once
		finished := func() {
			once.Do(func() {
				log.Info().Str("module", "dummyclient").Str("track", src.Name).Msg("finished writing")
				wg.Done()
			})
		}
		if sid, err = r.Publish(src, finished); err != nil {
			finished()
			return fmt.Errorf("publishing %s: %w", src.Name, err)
		}
		defer r.Unpublish(sid)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	log.Info().Str("module", "dummyclient").Str("room", room).Str("video", v.Title).Msg("playing")
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}
