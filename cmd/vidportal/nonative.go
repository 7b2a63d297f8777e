//go:build !native

package main

import (
	"fmt"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
)

func newNative() (capture.Capturer, error) {
	return nil, fmt.Errorf("%w: built without the native backend, rebuild with -tags native", defs.ErrCaptureUnsupported)
}

// videos without a thumbnail get a 501 poster
func posterRenderer() func(url string) ([]byte, error) {
	return nil
}
