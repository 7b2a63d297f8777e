package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmisol/vidportal/defs"
)

func TestVideoArgs(t *testing.T) {
	f := NewFFmpeg("")
	args := strings.Join(f.VideoArgs("https://example.com/a.mp4", 1500*time.Millisecond), " ")
	for _, want := range []string{
		"-re -ss 1.500 -i https://example.com/a.mp4",
		"-map 0:v:0",
		"-profile:v baseline",
		"-vf scale=-2:720",
		"-r 30",
		"keyint=60",
		"-f h264 pipe:1",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("%q missing from %q", want, args)
		}
	}
}

func TestAudioArgsNoOffset(t *testing.T) {
	f := NewFFmpeg("/opt/bin/ffmpeg")
	if f.Probe != "/opt/bin/ffprobe" {
		t.Errorf("probe %q", f.Probe)
	}
	args := strings.Join(f.AudioArgs("in.mp4", 0), " ")
	if strings.Contains(args, "-ss") {
		t.Errorf("unexpected seek in %q", args)
	}
	for _, want := range []string{"-map 0:a:0", "-c:a libopus", "-page_duration 20000", "-f ogg pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("%q missing from %q", want, args)
		}
	}
}

func TestParseStreams(t *testing.T) {
	cases := []struct {
		out  string
		want probed
	}{
		{"video,1920,1080\naudio\n", probed{video: true, audio: true, width: 1920, height: 1080}},
		{"video,\n", probed{video: true}},
		{"audio\ndata\n", probed{audio: true}},
		{"video,640,480\nvideo,320,240\n", probed{video: true, width: 640, height: 480}},
		{"", probed{}},
	}
	for _, tc := range cases {
		if got := parseStreams([]byte(tc.out)); got != tc.want {
			t.Errorf("%q: got %+v", tc.out, got)
		}
	}
}

func TestScaledWidth(t *testing.T) {
	cases := []struct{ w, h, want int }{
		{1920, 1080, 1280},
		{640, 480, 960},
		{1000, 1001, 718},
		{0, 0, 1280},
	}
	for _, tc := range cases {
		if got := scaledWidth(tc.w, tc.h, 720); got != tc.want {
			t.Errorf("%dx%d: got %d", tc.w, tc.h, got)
		}
	}
}

func TestCaptureWithoutFFmpeg(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffmpeg")
	_, err := f.Capture(context.Background(), defs.DefaultCatalog().First(), 0)
	if !errors.Is(err, defs.ErrCaptureUnsupported) {
		t.Fatalf("expected ErrCaptureUnsupported, got %v", err)
	}
}

func TestStreamStopOnce(t *testing.T) {
	n := 0
	s := NewStream(&TrackSource{Kind: KindVideo}, nil, func() { n++ })
	if len(s.Sources()) != 1 {
		t.Errorf("sources %v", s.Sources())
	}
	s.Stop()
	s.Stop()
	if n != 1 {
		t.Errorf("stop ran %d times", n)
	}
}
