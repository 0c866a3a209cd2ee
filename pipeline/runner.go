// Package pipeline drives the frame loop: read a frame, detect, show, publish,
// and stop on end of stream, user interrupt or context cancellation.
package pipeline

import (
	"ColorDetServer/engine"
	iface "ColorDetServer/interface"
	"ColorDetServer/logger"
	"ColorDetServer/monitor"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

type Runner struct {
	detector *engine.Detector
	source   iface.FrameSource
	sink     iface.DisplaySink
	publish  func(iface.Report)
	log      *zap.Logger
}

// New builds a Runner. publish may be nil.
func New(detector *engine.Detector, source iface.FrameSource, sink iface.DisplaySink, publish func(iface.Report)) *Runner {
	return &Runner{
		detector: detector,
		source:   source,
		sink:     sink,
		publish:  publish,
		log:      logger.Named("pipeline"),
	}
}

// Run processes frames one at a time and returns how many were processed.
// End of stream, an interrupt from the sink and ctx cancellation are normal
// terminations and return a nil error.
func (r *Runner) Run(ctx context.Context) (int, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	processed := 0
	for {
		select {
		case <-ctx.Done():
			r.log.Info("pipeline cancelled", zap.Int("frames", processed))
			return processed, nil
		default:
		}

		if err := r.source.Next(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Info("input exhausted", zap.Int("frames", processed))
				return processed, nil
			}
			return processed, fmt.Errorf("read frame %d: %w", processed, err)
		}

		stop, err := r.step(frame, processed)
		if err != nil {
			if errors.Is(err, engine.ErrEmptyFrame) {
				r.log.Info("empty frame, stopping", zap.Int("frames", processed))
				return processed, nil
			}
			return processed, err
		}
		processed++
		if stop {
			r.log.Info("interrupted by user", zap.Int("frames", processed))
			return processed, nil
		}
	}
}

func (r *Runner) step(frame gocv.Mat, index int) (bool, error) {
	start := time.Now()
	res, err := r.detector.Detect(frame)
	if err != nil {
		return false, err
	}
	defer res.Close()
	monitor.ObserveFrame(time.Since(start), res.Detection)

	if det := res.Detection; det != nil {
		r.log.Debug("target selected",
			zap.Int("frame", index),
			zap.Int("x", det.Box.X), zap.Int("y", det.Box.Y),
			zap.Int("w", det.Box.Width), zap.Int("h", det.Box.Height),
			zap.Float64("area", det.Area))
	}

	r.sink.Show(res.Display, res.Mask)
	if r.publish != nil {
		r.publish(iface.Report{Frame: index, Timestamp: time.Now(), Detection: res.Detection})
	}
	return r.sink.PollInterrupt(), nil
}
