package engine

import (
	iface "ColorDetServer/interface"
	"fmt"

	"gocv.io/x/gocv"
)

// Config is the immutable configuration of a Detector.
type Config struct {
	Range  iface.ColorRange `json:"colorRange"`
	Params Params           `json:"params"`
	Label  string           `json:"label"`
}

// Detector runs Preprocess and SelectAndAnnotate on a frame. It holds no
// per-frame state, so one Detector may serve several callers.
type Detector struct {
	cfg Config
}

// NewDetector validates the color range and params once, up front.
func NewDetector(rng iface.ColorRange, params Params, label string) (*Detector, error) {
	if err := ValidateRange(rng); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: Config{Range: rng, Params: params, Label: label}}, nil
}

func (d *Detector) CheckConfig() Config {
	return d.cfg
}

// WithLabel returns a Detector sharing the same thresholds but annotating with label.
func (d *Detector) WithLabel(label string) *Detector {
	cfg := d.cfg
	cfg.Label = label
	return &Detector{cfg: cfg}
}

// Detect processes one frame. The frame is not modified; annotations go to a
// copy returned as FrameResult.Display. The caller owns and must Close the result.
func (d *Detector) Detect(frame gocv.Mat) (iface.FrameResult, error) {
	if frame.Empty() {
		return iface.FrameResult{}, ErrEmptyFrame
	}
	if frame.Channels() != 3 {
		return iface.FrameResult{}, fmt.Errorf("expected 3-channel BGR frame, got %d channels", frame.Channels())
	}
	mask := Preprocess(frame, d.cfg.Range, d.cfg.Params)
	display := frame.Clone()
	det := SelectAndAnnotate(mask, &display, d.cfg.Label, d.cfg.Params)
	return iface.FrameResult{Detection: det, Display: display, Mask: mask}, nil
}
