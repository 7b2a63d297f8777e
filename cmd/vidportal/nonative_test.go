//go:build !native

package main

import (
	"errors"
	"testing"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
)

func TestCapturerWithoutNative(t *testing.T) {
	c, err := newCapturer(&defs.PortalConf{Capture: defs.CaptureFFmpeg, FFmpeg: "ffmpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*capture.FFmpeg); !ok {
		t.Errorf("got %T", c)
	}

	if _, err = newCapturer(&defs.PortalConf{Capture: defs.CaptureNative}); !errors.Is(err, defs.ErrCaptureUnsupported) {
		t.Errorf("expected ErrCaptureUnsupported, got %v", err)
	}
	if posterRenderer() != nil {
		t.Error("poster renderer without the native backend")
	}
}
