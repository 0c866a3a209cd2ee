package capture

import (
	"gocv.io/x/gocv"
)

const (
	ResultWindow = "Result Image"
	MaskWindow   = "Green Mask"
	KeyEsc       = 27
)

// WindowSink shows the annotated frame and the mask in two highgui windows.
// ESC in either window requests termination.
type WindowSink struct {
	result *gocv.Window
	mask   *gocv.Window
	delay  int
}

// NewWindowSink opens the windows; delayMs is the WaitKey delay per frame.
func NewWindowSink(delayMs int) *WindowSink {
	if delayMs <= 0 {
		delayMs = 10
	}
	return &WindowSink{
		result: gocv.NewWindow(ResultWindow),
		mask:   gocv.NewWindow(MaskWindow),
		delay:  delayMs,
	}
}

func (w *WindowSink) Show(display gocv.Mat, mask gocv.Mat) {
	w.result.IMShow(display)
	w.mask.IMShow(mask)
}

func (w *WindowSink) PollInterrupt() bool {
	return w.result.WaitKey(w.delay) == KeyEsc
}

// Hold keeps the last frame on screen until any key is pressed.
func (w *WindowSink) Hold() {
	w.result.WaitKey(0)
}

func (w *WindowSink) Close() error {
	if err := w.mask.Close(); err != nil {
		return err
	}
	return w.result.Close()
}

// NullSink discards frames; used when running headless.
type NullSink struct{}

func (NullSink) Show(gocv.Mat, gocv.Mat) {}

func (NullSink) PollInterrupt() bool { return false }

func (NullSink) Close() error { return nil }
