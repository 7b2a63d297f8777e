package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

func TestRetryCount(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if calls != 3 {
		t.Errorf("%d attempts", calls)
	}
	if !errors.Is(err, defs.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestRetrySucceeds(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("err %v after %d attempts", err, calls)
	}
}

func TestRetryStopsOnAuth(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("%w dial error: websocket: bad handshake", lksdk.ErrSignalError)
	})
	if calls != 1 {
		t.Errorf("%d attempts for a rejected token", calls)
	}
	if !errors.Is(err, defs.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestRetryTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	calls := 0
	start := time.Now()
	err := retry(ctx, 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		_, err := dial(ctx, func() (*lksdk.Room, error) {
			<-release
			return nil, errors.New("too late")
		})
		return err
	})
	if took := time.Since(start); took > time.Second {
		t.Errorf("took %v", took)
	}
	if calls != 1 {
		t.Errorf("%d attempts after the deadline", calls)
	}
	if !errors.Is(err, defs.ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v", err)
	}
}

func TestConnectMalformedToken(t *testing.T) {
	_, err := Connect(context.Background(), "ws://127.0.0.1:1", "not-a-jwt", 3, Callbacks{})
	if !errors.Is(err, defs.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestPublicationOptions(t *testing.T) {
	video := PublicationOptions(&capture.TrackSource{Name: "video-1", Kind: capture.KindVideo, Width: 1280, Height: 720})
	if video.Name != "video-1" || video.Source != livekit.TrackSource_UNKNOWN {
		t.Errorf("video %+v", video)
	}
	if video.VideoWidth != 1280 || video.VideoHeight != 720 {
		t.Errorf("dimensions %dx%d", video.VideoWidth, video.VideoHeight)
	}

	audio := PublicationOptions(&capture.TrackSource{Name: "audio-playback", Kind: capture.KindAudio})
	if audio.DisableDTX || audio.VideoHeight != 0 {
		t.Errorf("audio %+v", audio)
	}
}
