//go:build native

// Package cv captures video with OpenCV and encodes it with x264, without an
// external ffmpeg. It needs both libraries at build time, and is only built
// with -tags native.
package cv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/gen2brain/x264-go"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

const (
	defaultFps = 30
)

// Native is video only, audio is not decoded.
type Native struct{}

func (n *Native) Capture(ctx context.Context, v *defs.Video, offset time.Duration) (s *capture.Stream, err error) {
	vc, err := open(v.Url, offset)
	if err != nil {
		return
	}

	fps := int(vc.Get(gocv.VideoCaptureFPS) + 0.5)
	if fps <= 0 {
		fps = defaultFps
	}
	w := int(vc.Get(gocv.VideoCaptureFrameWidth))
	h := int(vc.Get(gocv.VideoCaptureFrameHeight))
	if w <= 0 || h <= 0 {
		vc.Close()
		err = fmt.Errorf("%w: %s reports no frame size", defs.ErrCaptureUnsupported, v.Url)
		return
	}

	pr, pw := io.Pipe()
	enc, err := x264.NewEncoder(pw, &x264.Options{
		Width:     w,
		Height:    h,
		FrameRate: fps,
		Tune:      "zerolatency",
		Preset:    "veryfast",
		Profile:   "baseline",
	})
	if err != nil {
		vc.Close()
		err = fmt.Errorf("%w: x264: %v", defs.ErrCaptureUnsupported, err)
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer vc.Close()
		err := encode(vc, enc, stop)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		// the pipe reader sees EOF on a clean end
		pw.CloseWithError(err)
		log.Info().Str("module", "cv").Int("video", v.Id).AnErr("err", err).Msg("native capture finished")
	}()

	video := &capture.TrackSource{
		ReadCloser: pr,
		Name:       fmt.Sprintf("video-%d", v.Id),
		Kind:       capture.KindVideo,
		Mime:       webrtc.MimeTypeH264,
		Frame:      time.Second / time.Duration(fps),
		Width:      w,
		Height:     h,
	}
	s = capture.NewStream(video, nil, func() {
		close(stop)
		pr.Close()
		<-done
	})
	log.Info().Str("module", "cv").Int("video", v.Id).Int("fps", fps).Int("w", w).Int("h", h).Msg("native capture started")
	return
}

func open(url string, offset time.Duration) (vc *gocv.VideoCapture, err error) {
	if vc, err = gocv.VideoCaptureFile(url); err != nil {
		err = fmt.Errorf("%w: opening %s: %v", defs.ErrCaptureUnsupported, url, err)
		return
	}
	if !vc.IsOpened() {
		vc.Close()
		err = fmt.Errorf("%w: can't open %s", defs.ErrCaptureUnsupported, url)
		return
	}
	if offset > 0 {
		vc.Set(gocv.VideoCapturePosMsec, float64(offset.Milliseconds()))
	}
	return
}

// encode runs until the source ends or stop closes. Writes block on the
// pipe, so the consumer paces decoding.
func encode(vc *gocv.VideoCapture, enc *x264.Encoder, stop <-chan struct{}) error {
	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if ok := vc.Read(&img); !ok || img.Empty() {
			return enc.Flush()
		}
		frame, err := img.ToImage()
		if err != nil {
			return err
		}
		if err = enc.Encode(frame); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}
