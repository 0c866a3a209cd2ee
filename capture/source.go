// Package capture provides the frame sources and display sinks around the
// detection engine: gocv video capture, still images and highgui windows.
package capture

import (
	iface "ColorDetServer/interface"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

var ErrSourceUnavailable = errors.New("video source unavailable")

var stillExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true}

// Open picks a StillSource for image files and a VideoSource for everything
// else (video files, device indices, stream URLs).
func Open(source string) (iface.FrameSource, error) {
	if stillExts[strings.ToLower(filepath.Ext(source))] {
		still, err := OpenStill(source)
		if err != nil {
			return nil, err
		}
		return still, nil
	}
	video, err := OpenVideoSource(source)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// VideoSource reads frames sequentially from a gocv.VideoCapture.
type VideoSource struct {
	capture *gocv.VideoCapture
	name    string
}

func OpenVideoSource(source string) (*VideoSource, error) {
	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, source)
	}
	return &VideoSource{capture: vc, name: source}, nil
}

// Next reads the next frame into dst. An unsuccessful or empty read ends the stream.
func (v *VideoSource) Next(dst *gocv.Mat) error {
	if ok := v.capture.Read(dst); !ok || dst.Empty() {
		return io.EOF
	}
	return nil
}

func (v *VideoSource) Name() string {
	return v.name
}

func (v *VideoSource) Close() error {
	return v.capture.Close()
}

// StillSource yields a single decoded image once, then io.EOF.
type StillSource struct {
	img  gocv.Mat
	done bool
}

func OpenStill(path string) (*StillSource, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		_ = img.Close()
		return nil, fmt.Errorf("%w: cannot decode image %s", ErrSourceUnavailable, path)
	}
	return &StillSource{img: img}, nil
}

func (s *StillSource) Next(dst *gocv.Mat) error {
	if s.done {
		return io.EOF
	}
	s.done = true
	s.img.CopyTo(dst)
	return nil
}

func (s *StillSource) Close() error {
	return s.img.Close()
}
