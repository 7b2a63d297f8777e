package dummyclient

import (
	"context"
	"sync"

	"github.com/dmisol/vidportal/defs"
	"github.com/dmisol/vidportal/relay"
	"github.com/dmisol/vidportal/token"
	"github.com/rs/zerolog/log"
)

// Observe joins room and records every subscribed track into dir, the way the
// commentator on the other side receives them.
func Observe(ctx context.Context, c *defs.PortalConf, tokens token.Source, room, dir string) error {
	tok, err := tokens.Fetch(ctx, room)
	if err != nil {
		return err
	}

	o := &observer{dir: dir}
	r, err := relay.Connect(ctx, c.Ws, tok, c.MaxRetries, relay.Callbacks{
		OnTrack:        o.onTrack,
		OnDisconnected: func() { log.Warn().Str("module", "observer").Str("room", room).Msg("disconnected") },
	})
	if err != nil {
		return err
	}
	defer r.Close()
	defer o.close()

	log.Info().Str("module", "observer").Str("room", room).Str("dir", dir).Msg("observing")
	<-ctx.Done()
	return nil
}

type observer struct {
	mu    sync.Mutex
	dir   string
	sinks []*relay.Sink
}

func (o *observer) onTrack(remote relay.RemoteTrack, participant string) {
	s, err := relay.NewTrackSink(remote, participant, o.dir, true)
	if err != nil {
		log.Error().Str("module", "observer").Err(err).Msg("sink")
		return
	}
	log.Info().Str("module", "observer").Str("participant", participant).Str("track", remote.ID()).
		Str("kind", remote.Kind().String()).Msg("recording")

	o.mu.Lock()
	o.sinks = append(o.sinks, s)
	o.mu.Unlock()
}

func (o *observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sinks {
		s.Close()
	}
	o.sinks = nil
}
