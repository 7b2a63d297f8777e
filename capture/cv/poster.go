//go:build native

package cv

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// Poster grabs the frame at the given position as a JPEG.
func Poster(url string, at time.Duration) ([]byte, error) {
	vc, err := open(url, at)
	if err != nil {
		return nil, err
	}
	defer vc.Close()

	img := gocv.NewMat()
	defer img.Close()
	if ok := vc.Read(&img); !ok || img.Empty() {
		return nil, errors.New("no frame at " + at.String())
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
