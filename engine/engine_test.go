package engine

import (
	iface "ColorDetServer/interface"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(DefaultColorRange()))

	inverted := DefaultColorRange()
	inverted.Lower.S = 200
	inverted.Upper.S = 100
	assert.True(t, errors.Is(ValidateRange(inverted), ErrInvalidRange))

	hue := DefaultColorRange()
	hue.Upper.H = 200
	assert.True(t, errors.Is(ValidateRange(hue), ErrInvalidRange))

	negative := DefaultColorRange()
	negative.Lower.V = -1
	assert.True(t, errors.Is(ValidateRange(negative), ErrInvalidRange))

	point := iface.ColorRange{Lower: iface.HSV{H: 60, S: 255, V: 255}, Upper: iface.HSV{H: 60, S: 255, V: 255}}
	assert.NoError(t, ValidateRange(point))
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"even blur kernel", func(p *Params) { p.BlurKernel = 4 }},
		{"zero morph kernel", func(p *Params) { p.MorphKernel = 0 }},
		{"zero min side", func(p *Params) { p.MinSide = 0 }},
		{"aspect below one", func(p *Params) { p.MaxAspectRatio = 0.9 }},
		{"negative epsilon", func(p *Params) { p.ApproxEpsilon = -0.1 }},
		{"zero thickness", func(p *Params) { p.BoxThickness = 0 }},
		{"zero font scale", func(p *Params) { p.FontScale = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			assert.True(t, errors.Is(p.Validate(), ErrInvalidParams))
		})
	}
}

func TestDetector_All(t *testing.T) {
	t.Run("Test New rejects bad range", func(t *testing.T) {
		bad := DefaultColorRange()
		bad.Lower.H = 90
		_, err := NewDetector(bad, DefaultParams(), "Target")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("Test New rejects bad params", func(t *testing.T) {
		p := DefaultParams()
		p.BlurKernel = 2
		_, err := NewDetector(DefaultColorRange(), p, "Target")
		assert.ErrorIs(t, err, ErrInvalidParams)
	})

	d, err := NewDetector(DefaultColorRange(), DefaultParams(), "Target")
	require.NoError(t, err)

	t.Run("Test CheckConfig", func(t *testing.T) {
		cfg := d.CheckConfig()
		assert.Equal(t, "Target", cfg.Label)
		assert.Equal(t, DefaultColorRange(), cfg.Range)
		assert.Equal(t, DefaultParams(), cfg.Params)
		assert.Equal(t, "Ball", d.WithLabel("Ball").CheckConfig().Label)
		assert.Equal(t, "Target", d.CheckConfig().Label)
	})

	t.Run("Test Detect green square", func(t *testing.T) {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 160, 160, gocv.MatTypeCV8UC3)
		defer frame.Close()
		gocv.Rectangle(&frame, image.Rect(40, 40, 90, 90), color.RGBA{G: 255}, -1)
		before := frame.ToBytes()

		res, err := d.Detect(frame)
		require.NoError(t, err)
		defer res.Close()

		require.NotNil(t, res.Detection)
		box := res.Detection.Box
		assert.InDelta(t, 40, box.X, 2)
		assert.InDelta(t, 40, box.Y, 2)
		assert.InDelta(t, 50, box.Width, 4)
		assert.InDelta(t, 50, box.Height, 4)
		assert.Equal(t, before, frame.ToBytes())
		assert.NotEqual(t, before, res.Display.ToBytes())
		assert.Equal(t, frame.Rows(), res.Mask.Rows())
	})

	t.Run("Test Detect nothing", func(t *testing.T) {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 120, 120, gocv.MatTypeCV8UC3)
		defer frame.Close()

		res, err := d.Detect(frame)
		require.NoError(t, err)
		defer res.Close()
		assert.Nil(t, res.Detection)
		assert.Equal(t, frame.ToBytes(), res.Display.ToBytes())
	})

	t.Run("Test Detect empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		_, err := d.Detect(empty)
		assert.ErrorIs(t, err, ErrEmptyFrame)
	})

	t.Run("Test Detect gray frame", func(t *testing.T) {
		gray := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC1)
		defer gray.Close()
		_, err := d.Detect(gray)
		assert.Error(t, err)
	})
}
