package engine

import (
	iface "ColorDetServer/interface"
	"errors"
	"fmt"
	"image/color"
)

var (
	ErrInvalidRange  = errors.New("invalid color range")
	ErrInvalidParams = errors.New("invalid detection params")
	ErrEmptyFrame    = errors.New("empty frame")
)

// AnnotationColor 标注框与文字颜色（绿色）
var AnnotationColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Params holds the fixed thresholds of the detection pipeline.
type Params struct {
	BlurKernel     int     `yaml:"blurKernel" json:"blurKernel"`
	MorphKernel    int     `yaml:"morphKernel" json:"morphKernel"`
	MinSide        int     `yaml:"minSide" json:"minSide"`
	MaxAspectRatio float64 `yaml:"maxAspectRatio" json:"maxAspectRatio"`
	ApproxEpsilon  float64 `yaml:"approxEpsilon" json:"approxEpsilon"`
	BoxThickness   int     `yaml:"boxThickness" json:"boxThickness"`
	LabelOffset    int     `yaml:"labelOffset" json:"labelOffset"`
	FontScale      float64 `yaml:"fontScale" json:"fontScale"`
	FontThickness  int     `yaml:"fontThickness" json:"fontThickness"`
}

// DefaultParams returns the reference thresholds:
//   - 5x5 Gaussian blur, 3x3 rectangular morphology kernel
//   - boxes narrower or shorter than 3px are noise
//   - aspect ratio up to 1.25 (inclusive) counts as square/round
//   - polygon approximation tolerance of 2% of the perimeter
func DefaultParams() Params {
	return Params{
		BlurKernel:     5,
		MorphKernel:    3,
		MinSide:        3,
		MaxAspectRatio: 1.25,
		ApproxEpsilon:  0.02,
		BoxThickness:   2,
		LabelOffset:    5,
		FontScale:      1.0,
		FontThickness:  1,
	}
}

func (p Params) Validate() error {
	switch {
	case p.BlurKernel <= 0 || p.BlurKernel%2 == 0:
		return fmt.Errorf("%w: blurKernel must be a positive odd number, got %d", ErrInvalidParams, p.BlurKernel)
	case p.MorphKernel <= 0:
		return fmt.Errorf("%w: morphKernel must be positive, got %d", ErrInvalidParams, p.MorphKernel)
	case p.MinSide < 1:
		return fmt.Errorf("%w: minSide must be at least 1, got %d", ErrInvalidParams, p.MinSide)
	case p.MaxAspectRatio < 1.0:
		return fmt.Errorf("%w: maxAspectRatio must be >= 1.0, got %f", ErrInvalidParams, p.MaxAspectRatio)
	case p.ApproxEpsilon < 0:
		return fmt.Errorf("%w: approxEpsilon cannot be negative, got %f", ErrInvalidParams, p.ApproxEpsilon)
	case p.BoxThickness < 1 || p.FontThickness < 1:
		return fmt.Errorf("%w: line thickness must be at least 1", ErrInvalidParams)
	case p.FontScale <= 0:
		return fmt.Errorf("%w: fontScale must be positive, got %f", ErrInvalidParams, p.FontScale)
	case p.LabelOffset < 0:
		return fmt.Errorf("%w: labelOffset cannot be negative, got %d", ErrInvalidParams, p.LabelOffset)
	}
	return nil
}

// Qualifies applies the size and shape filter to a bounding box.
func (p Params) Qualifies(box iface.BoundingBox) bool {
	if box.Width < p.MinSide || box.Height < p.MinSide {
		return false
	}
	return box.AspectRatio() <= p.MaxAspectRatio
}

// DefaultColorRange 绿色范围 (HSV)
func DefaultColorRange() iface.ColorRange {
	return iface.ColorRange{
		Lower: iface.HSV{H: 40, S: 80, V: 80},
		Upper: iface.HSV{H: 80, S: 255, V: 255},
	}
}

// ValidateRange rejects ranges that are inverted on some channel or outside
// OpenCV's 8-bit HSV scale.
func ValidateRange(r iface.ColorRange) error {
	channels := []struct {
		name         string
		lower, upper float64
		max          float64
	}{
		{"h", r.Lower.H, r.Upper.H, 180},
		{"s", r.Lower.S, r.Upper.S, 255},
		{"v", r.Lower.V, r.Upper.V, 255},
	}
	for _, c := range channels {
		if c.lower < 0 || c.upper > c.max {
			return fmt.Errorf("%w: channel %s bounds [%g, %g] outside [0, %g]", ErrInvalidRange, c.name, c.lower, c.upper, c.max)
		}
		if c.lower > c.upper {
			return fmt.Errorf("%w: channel %s lower %g > upper %g", ErrInvalidRange, c.name, c.lower, c.upper)
		}
	}
	return nil
}
