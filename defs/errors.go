package defs

import "errors"

var (
	ErrNetwork            = errors.New("network error")
	ErrAuth               = errors.New("not authorized")
	ErrCaptureUnsupported = errors.New("media capture unsupported")
	ErrUnknownVideo       = errors.New("unknown video")
	ErrUnknownView        = errors.New("unknown view")
)
