package iface

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// HSV is a color in OpenCV's 8-bit HSV scale: H 0-180, S and V 0-255.
type HSV struct {
	H float64 `yaml:"h" json:"h"`
	S float64 `yaml:"s" json:"s"`
	V float64 `yaml:"v" json:"v"`
}

// Scalar 转为 gocv.Scalar，供 InRangeWithScalar 使用
func (c HSV) Scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// ColorRange bounds each HSV channel independently, both ends inclusive.
type ColorRange struct {
	Lower HSV `yaml:"lower" json:"lower"`
	Upper HSV `yaml:"upper" json:"upper"`
}

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// AspectRatio returns max(w,h)/min(w,h). Degenerate boxes report 0.
func (b BoundingBox) AspectRatio() float64 {
	w, h := float64(b.Width), float64(b.Height)
	if w <= 0 || h <= 0 {
		return 0
	}
	if w > h {
		return w / h
	}
	return h / w
}

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (b BoundingBox) Center() Position {
	return Position{
		X: float32(b.X) + float32(b.Width)/2,
		Y: float32(b.Y) + float32(b.Height)/2,
	}
}

// Detection is the single object selected for a frame.
type Detection struct {
	Box     BoundingBox   `json:"box"`
	Label   string        `json:"label"`
	Area    float64       `json:"area"`
	Center  Position      `json:"center"`
	Polygon []image.Point `json:"polygon,omitempty"`
}

// Report is what the host publishes for every processed frame.
type Report struct {
	Frame     int        `json:"frame" cbor:"frame"`
	Timestamp time.Time  `json:"timestamp" cbor:"timestamp"`
	Detection *Detection `json:"detection" cbor:"detection"`
}

// FrameResult 是一帧处理后的产物。Display 与 Mask 由调用方负责 Close
type FrameResult struct {
	Detection *Detection
	Display   gocv.Mat
	Mask      gocv.Mat
}

func (r *FrameResult) Close() {
	_ = r.Display.Close()
	_ = r.Mask.Close()
}

// FrameSource yields frames sequentially. Next returns io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(dst *gocv.Mat) error
	Close() error
}

type DisplaySink interface {
	Show(display gocv.Mat, mask gocv.Mat)
	// PollInterrupt reports whether the user asked to stop (e.g. ESC pressed).
	PollInterrupt() bool
	Close() error
}
