package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	webrtc "github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

const (
	retryPause = 500 * time.Millisecond
)

// Callbacks are invoked from sdk goroutines.
type Callbacks struct {
	OnTrack        func(remote RemoteTrack, participant string)
	OnDisconnected func()
}

type Relay struct {
	*lksdk.Room

	context.Context
	context.CancelFunc
}

// Connect joins the room the token grants, retrying up to retries times.
// Rejected tokens are not retried and come back as defs.ErrAuth.
func Connect(ctx context.Context, url, token string, retries int, cb Callbacks) (r *Relay, err error) {
	if _, err = auth.ParseAPIToken(token); err != nil {
		err = fmt.Errorf("%w: malformed token: %v", defs.ErrAuth, err)
		return
	}

	var room *lksdk.Room
	err = retry(ctx, retries, retryPause, func(ctx context.Context) (err error) {
		room, err = dial(ctx, func() (*lksdk.Room, error) {
			return lksdk.ConnectToRoomWithToken(url, token, roomCallback(cb), func(cp *lksdk.ConnectParams) { cp.AutoSubscribe = true })
		})
		return
	})
	if err != nil {
		err = fmt.Errorf("connecting to %s: %w", url, err)
		return
	}

	r = &Relay{Room: room}
	// ctx bounds the dial only, the room lives until Close
	r.Context, r.CancelFunc = context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		<-r.Context.Done()
		r.Room.Disconnect()
	}()
	return
}

// retry runs fn up to attempts times, pausing a little longer after each
// failure. Errors come back classified; auth failures and ctx end it early.
func retry(ctx context.Context, attempts int, pause time.Duration, fn func(ctx context.Context) error) (err error) {
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return
		}
		err = classify(err)
		if ctx.Err() != nil || errors.Is(err, defs.ErrAuth) {
			break
		}
		log.Warn().Str("module", "relay").Int("attempt", attempt).Err(err).Msg("connect failed")
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(pause * time.Duration(attempt)):
		}
	}
	return
}

// classify tells rejected tokens from the rest. The server refuses the
// signalling websocket upgrade when the token does not check out, the sdk
// reports that as a bad handshake.
func classify(err error) error {
	switch {
	case errors.Is(err, defs.ErrAuth), errors.Is(err, defs.ErrNetwork):
		return err
	case errors.Is(err, lksdk.ErrSignalError) && strings.Contains(err.Error(), "bad handshake"):
		return fmt.Errorf("%w: %w", defs.ErrAuth, err)
	}
	return fmt.Errorf("%w: %w", defs.ErrNetwork, err)
}

func roomCallback(cb Callbacks) *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnDisconnected: func() {
			if cb.OnDisconnected != nil {
				cb.OnDisconnected()
			}
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(remote *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if cb.OnTrack != nil {
					cb.OnTrack(remote, rp.Identity())
				}
			},
		},
	}
}

// dial runs join, which can't be cancelled, within ctx.
func dial(ctx context.Context, join func() (*lksdk.Room, error)) (*lksdk.Room, error) {
	type result struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		room, err := join()
		ch <- result{room, err}
	}()

	select {
	case res := <-ch:
		return res.room, res.err
	case <-ctx.Done():
		// drop the room once it shows up
		go func() {
			if res := <-ch; res.room != nil {
				res.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// Publish makes a local track out of src and publishes it. onDone fires when src is drained.
func (r *Relay) Publish(src *capture.TrackSource, onDone func()) (sid string, err error) {
	if src == nil || src.ReadCloser == nil {
		err = errors.New("nothing to publish")
		return
	}
	opts := []lksdk.ReaderSampleProviderOption{}
	if src.Frame > 0 {
		opts = append(opts, lksdk.ReaderTrackWithFrameDuration(src.Frame))
	}
	if onDone != nil {
		opts = append(opts, lksdk.ReaderTrackWithOnWriteComplete(onDone))
	}

	track, err := lksdk.NewLocalReaderTrack(src.ReadCloser, src.Mime, opts...)
	if err != nil {
		err = fmt.Errorf("local track %s: %w", src.Mime, err)
		return
	}

	pub, err := r.Room.LocalParticipant.PublishTrack(track, PublicationOptions(src))
	if err != nil {
		err = fmt.Errorf("publishing %s: %w", src.Name, err)
		return
	}
	sid = pub.SID()
	r.Println("published", src.Name, src.Mime, sid)
	return
}

// PublicationOptions publishes with an unknown source, video with its
// dimensions and opus with dtx on.
func PublicationOptions(src *capture.TrackSource) *lksdk.TrackPublicationOptions {
	opts := &lksdk.TrackPublicationOptions{
		Name:   src.Name,
		Source: livekit.TrackSource_UNKNOWN,
	}
	if src.Kind == capture.KindVideo {
		opts.VideoWidth, opts.VideoHeight = src.Width, src.Height
	}
	return opts
}

func (r *Relay) Unpublish(sid string) error {
	r.Println("unpublishing", sid)
	return r.Room.LocalParticipant.UnpublishTrack(sid)
}

func (r *Relay) Close() {
	r.Println("closing")
	r.CancelFunc()
}

func (r *Relay) Println(i ...interface{}) {
	log.Debug().Str("module", "relay").Msg(fmt.Sprintln(i...))
}
