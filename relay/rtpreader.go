package relay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/h264writer"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

const (
	opusRate     = 48000
	opusChannels = 2
)

type RtpReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RemoteTrack is the part of *webrtc.TrackRemote sinks need.
type RemoteTrack interface {
	RtpReader
	ID() string
	Kind() webrtc.RTPCodecType
}

type RtpWriter interface {
	WriteRTP(p *rtp.Packet) error
}

type RtpWriteCloser interface {
	RtpWriter
	Close() error
}

// Sink keeps reading a remote track, and passes packets on to w and to the
// taps while enabled. A nil w with no taps only drains the track.
type Sink struct {
	mu      sync.Mutex
	enabled bool
	closed  bool
	w       RtpWriteCloser
	taps    []RtpWriter

	Name string
	done chan struct{}
}

func NewSink(name string, src RtpReader, w RtpWriteCloser, enabled bool) *Sink {
	s := &Sink{
		Name:    name,
		enabled: enabled,
		w:       w,
		done:    make(chan struct{}),
	}
	go s.run(src)
	return s
}

// NewTrackSink records into dir (ogg for audio, annex-b for video) when dir is set.
func NewTrackSink(remote RemoteTrack, participant, dir string, enabled bool) (s *Sink, err error) {
	name := sinkName(participant, remote.ID())
	var w RtpWriteCloser
	if dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return
		}
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			w, err = oggwriter.New(filepath.Join(dir, name+".ogg"), opusRate, opusChannels)
		} else {
			w, err = h264writer.New(filepath.Join(dir, name+".h264"))
		}
		if err != nil {
			return
		}
	}
	s = NewSink(name, remote, w, enabled)
	return
}

func sinkName(participant, track string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "..", "_")
	return r.Replace(fmt.Sprintf("%s-%s", participant, track))
}

func (s *Sink) run(src RtpReader) {
	defer close(s.done)
	defer s.Close()

	for {
		p, _, err := src.ReadRTP()
		if err != nil {
			s.Println("rtp rd", err)
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if s.enabled {
			s.forward(p)
		}
		s.mu.Unlock()
	}
}

func (s *Sink) forward(p *rtp.Packet) {
	if s.w != nil {
		if err := s.w.WriteRTP(p); err != nil {
			s.Println("write", err)
		}
	}
	// a failing tap is gone for good
	taps := s.taps[:0]
	for _, t := range s.taps {
		if err := t.WriteRTP(p); err != nil {
			s.Println("tap dropped", err)
			continue
		}
		taps = append(taps, t)
	}
	s.taps = taps
}

// Tap adds w to the outputs fed while the sink is enabled.
func (s *Sink) Tap(w RtpWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps = append(s.taps, w)
}

func (s *Sink) Untap(w RtpWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.taps {
		if t == w {
			s.taps = append(s.taps[:i], s.taps[i+1:]...)
			return
		}
	}
}

func (s *Sink) Enable(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
}

func (s *Sink) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Close stops forwarding. The reading goroutine ends with the remote track.
func (s *Sink) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.taps = nil
	if s.w != nil {
		err = s.w.Close()
	}
	return
}

// Done is closed once the remote track ends.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) Println(i ...interface{}) {
	log.Debug().Str("module", "sink").Str("sink", s.Name).Msg(fmt.Sprintln(i...))
}
