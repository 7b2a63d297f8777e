package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dmisol/vidportal/defs"
	webrtc "github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

const (
	defaultFps    = 30
	defaultHeight = 720
	opusFrame     = 20 * time.Millisecond
	probeTimeout  = 15 * time.Second
)

// FFmpeg decodes the source with ffmpeg, one process per track:
// baseline H.264 annex-b scaled to Height for video and ogg/opus for audio.
type FFmpeg struct {
	Bin    string
	Probe  string
	Fps    int
	Height int
}

func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	probe := "ffprobe"
	if strings.HasSuffix(bin, "ffmpeg") {
		probe = strings.TrimSuffix(bin, "ffmpeg") + "ffprobe"
	}
	return &FFmpeg{Bin: bin, Probe: probe, Fps: defaultFps, Height: defaultHeight}
}

func (f *FFmpeg) fps() int {
	if f.Fps <= 0 {
		return defaultFps
	}
	return f.Fps
}

func (f *FFmpeg) height() int {
	if f.Height <= 0 {
		return defaultHeight
	}
	return f.Height
}

// scaledWidth keeps the aspect ratio, rounded down to even like scale=-2 does.
func scaledWidth(w, h, height int) int {
	if w <= 0 || h <= 0 {
		return height * 16 / 9
	}
	return w * height / h &^ 1
}

func inputArgs(url string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-re"}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	return append(args, "-i", url)
}

func (f *FFmpeg) VideoArgs(url string, offset time.Duration) []string {
	fps := f.fps()
	return append(inputArgs(url, offset),
		"-map", "0:v:0", "-an",
		"-c:v", "libx264", "-profile:v", "baseline", "-preset", "veryfast",
		"-vf", fmt.Sprintf("scale=-2:%d", f.height()),
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(fps),
		"-x264-params", fmt.Sprintf("keyint=%d:scenecut=0:bframes=0", 2*fps),
		"-bsf:v", "h264_mp4toannexb",
		"-f", "h264", "pipe:1",
	)
}

func (f *FFmpeg) AudioArgs(url string, offset time.Duration) []string {
	return append(inputArgs(url, offset),
		"-map", "0:a:0", "-vn",
		"-c:a", "libopus", "-ar", "48000", "-ac", "2",
		"-page_duration", fmt.Sprint(opusFrame.Microseconds()),
		"-f", "ogg", "pipe:1",
	)
}

// ProbeArgs lists streams one per line: type, then width and height for video.
func (f *FFmpeg) ProbeArgs(url string) []string {
	return []string{"-v", "error", "-show_entries", "stream=codec_type,width,height", "-of", "csv=p=0", url}
}

type probed struct {
	video, audio  bool
	width, height int
}

func parseStreams(out []byte) (p probed) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), ",")
		switch strings.TrimSpace(fields[0]) {
		case KindVideo:
			if p.video {
				continue
			}
			p.video = true
			if len(fields) >= 3 {
				p.width, _ = strconv.Atoi(strings.TrimSpace(fields[1]))
				p.height, _ = strconv.Atoi(strings.TrimSpace(fields[2]))
			}
		case KindAudio:
			p.audio = true
		}
	}
	return
}

func (f *FFmpeg) probe(ctx context.Context, url string) (p probed, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, f.Probe, f.ProbeArgs(url)...).Output()
	if err != nil {
		err = fmt.Errorf("probing %s: %w", url, err)
		return
	}
	p = parseStreams(out)
	return
}

func (f *FFmpeg) Capture(ctx context.Context, v *defs.Video, offset time.Duration) (s *Stream, err error) {
	if _, err = exec.LookPath(f.Bin); err != nil {
		err = fmt.Errorf("%w: %v", defs.ErrCaptureUnsupported, err)
		return
	}
	p, err := f.probe(ctx, v.Url)
	if err != nil {
		return
	}
	hasVideo, hasAudio := p.video, p.audio
	if !hasVideo && !hasAudio {
		err = fmt.Errorf("%w: %s has no audio or video", defs.ErrCaptureUnsupported, v.Url)
		return
	}

	var (
		cmds         []*exec.Cmd
		video, audio *TrackSource
	)
	stop := func() {
		for _, c := range cmds {
			if c.Process != nil {
				_ = c.Process.Kill()
			}
		}
		for _, c := range cmds {
			_ = c.Wait()
		}
	}

	start := func(kind string, args []string) (*exec.Cmd, *TrackSource, error) {
		cmd := exec.Command(f.Bin, args...)
		cmd.Stderr = log.With().Str("module", "ffmpeg").Str("kind", kind).Logger()
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, nil, err
		}
		return cmd, &TrackSource{ReadCloser: out, Kind: kind}, nil
	}

	if hasVideo {
		var cmd *exec.Cmd
		if cmd, video, err = start(KindVideo, f.VideoArgs(v.Url, offset)); err != nil {
			err = fmt.Errorf("%w: starting ffmpeg: %v", defs.ErrCaptureUnsupported, err)
			return
		}
		cmds = append(cmds, cmd)
		video.Name = fmt.Sprintf("video-%d", v.Id)
		video.Mime = webrtc.MimeTypeH264
		video.Frame = time.Second / time.Duration(f.fps())
		video.Height = f.height()
		video.Width = scaledWidth(p.width, p.height, video.Height)
	}
	if hasAudio {
		var cmd *exec.Cmd
		if cmd, audio, err = start(KindAudio, f.AudioArgs(v.Url, offset)); err != nil {
			stop()
			err = fmt.Errorf("%w: starting ffmpeg: %v", defs.ErrCaptureUnsupported, err)
			return
		}
		cmds = append(cmds, cmd)
		// the name the room's agents look for
		audio.Name = "audio-playback"
		audio.Mime = webrtc.MimeTypeOpus
		audio.Frame = opusFrame
	}

	s = NewStream(video, audio, stop)
	log.Info().Str("module", "capture").Int("video", v.Id).Dur("offset", offset).
		Bool("has_video", hasVideo).Bool("has_audio", hasAudio).Msg("ffmpeg capture started")
	return
}
