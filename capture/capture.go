// Package capture turns a catalogue video, from a given playback position,
// into track sources ready to be published into a room.
package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmisol/vidportal/defs"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
)

type Capturer interface {
	Capture(ctx context.Context, v *defs.Video, offset time.Duration) (*Stream, error)
}

type TrackSource struct {
	io.ReadCloser

	Name  string
	Kind  string
	Mime  string
	Frame time.Duration
	// video only, 0 when unknown
	Width, Height int
}

// Stream holds what was captured. Video or Audio is nil when the source has none.
type Stream struct {
	Video, Audio *TrackSource

	once sync.Once
	stop func()
}

func NewStream(video, audio *TrackSource, stop func()) *Stream {
	return &Stream{Video: video, Audio: audio, stop: stop}
}

// Sources lists the non-nil tracks, video first.
func (s *Stream) Sources() (out []*TrackSource) {
	if s.Video != nil {
		out = append(out, s.Video)
	}
	if s.Audio != nil {
		out = append(out, s.Audio)
	}
	return
}

func (s *Stream) Stop() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
