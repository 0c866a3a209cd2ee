package pipeline

import (
	"ColorDetServer/engine"
	iface "ColorDetServer/interface"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource 依次返回预先准备的帧，之后返回 err（默认 io.EOF）
type fakeSource struct {
	frames []gocv.Mat
	next   int
	err    error
}

func (s *fakeSource) Next(dst *gocv.Mat) error {
	if s.next >= len(s.frames) {
		if s.err != nil {
			return s.err
		}
		return io.EOF
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return nil
}

func (s *fakeSource) Close() error {
	for _, f := range s.frames {
		_ = f.Close()
	}
	return nil
}

type fakeSink struct {
	shown       int
	interruptAt int
}

func (s *fakeSink) Show(display gocv.Mat, mask gocv.Mat) { s.shown++ }

func (s *fakeSink) PollInterrupt() bool { return s.interruptAt > 0 && s.shown >= s.interruptAt }

func (s *fakeSink) Close() error { return nil }

func greenSquareFrame() gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 120, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&m, image.Rect(30, 30, 70, 70), color.RGBA{G: 255}, -1)
	return m
}

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 120, gocv.MatTypeCV8UC3)
}

func newDetector(t *testing.T) *engine.Detector {
	d, err := engine.NewDetector(engine.DefaultColorRange(), engine.DefaultParams(), "Target")
	require.NoError(t, err)
	return d
}

func TestRunner_UntilEndOfStream(t *testing.T) {
	src := &fakeSource{frames: []gocv.Mat{greenSquareFrame(), blankFrame(), greenSquareFrame()}}
	defer src.Close()
	sink := &fakeSink{}
	var reports []iface.Report

	n, err := New(newDetector(t), src, sink, func(r iface.Report) { reports = append(reports, r) }).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, sink.shown)

	require.Len(t, reports, 3)
	assert.NotNil(t, reports[0].Detection)
	assert.Nil(t, reports[1].Detection)
	assert.NotNil(t, reports[2].Detection)
	assert.Equal(t, 2, reports[2].Frame)
	assert.Equal(t, "Target", reports[0].Detection.Label)
}

func TestRunner_Interrupt(t *testing.T) {
	src := &fakeSource{frames: []gocv.Mat{blankFrame(), blankFrame(), blankFrame(), blankFrame()}}
	defer src.Close()
	sink := &fakeSink{interruptAt: 2}

	n, err := New(newDetector(t), src, sink, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, src.next)
}

func TestRunner_Cancelled(t *testing.T) {
	src := &fakeSource{frames: []gocv.Mat{blankFrame()}}
	defer src.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := New(newDetector(t), src, &fakeSink{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, src.next)
}

func TestRunner_SourceError(t *testing.T) {
	boom := errors.New("device unplugged")
	src := &fakeSource{frames: []gocv.Mat{blankFrame()}, err: boom}
	defer src.Close()

	n, err := New(newDetector(t), src, &fakeSink{}, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}
