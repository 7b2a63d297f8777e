//go:build native

package main

import (
	"time"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/capture/cv"
)

const posterAt = 5 * time.Second

func newNative() (capture.Capturer, error) {
	return &cv.Native{}, nil
}

func posterRenderer() func(url string) ([]byte, error) {
	return func(url string) ([]byte, error) { return cv.Poster(url, posterAt) }
}
