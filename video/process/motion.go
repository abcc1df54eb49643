// Package process analyses captured frames outside the recognition loop.
package process

import (
	"context"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facerec/recognition"
	"facerec/video/source"
)

// DefaultMotionThreshold is the fraction of changed pixels counted as motion.
const DefaultMotionThreshold = 0.01

// Motion detects movement against a learned background.
type Motion struct {
	Threshold float64

	d gocv.BackgroundSubtractorMOG2

	blur, fg, mask, st3 gocv.Mat
}

func NewMotion() *Motion {
	return &Motion{
		Threshold: DefaultMotionThreshold,
		d:         gocv.NewBackgroundSubtractorMOG2(),
		blur:      gocv.NewMat(),
		fg:        gocv.NewMat(),
		mask:      gocv.NewMat(),
		st3:       gocv.GetStructuringElement(gocv.MorphCross, image.Point{X: 3, Y: 3}),
	}
}

// Detect updates the background model with frame and reports whether it
// differs from the background.
func (m *Motion) Detect(frame gocv.Mat) bool {
	gocv.Blur(frame, &m.blur, image.Point{X: 10, Y: 10})
	m.d.Apply(m.blur, &m.fg)

	// Drop shadows (127) and speckle.
	gocv.Threshold(m.fg, &m.mask, 128, 255, gocv.ThresholdBinary)
	gocv.Erode(m.mask, &m.mask, m.st3)

	total := m.mask.Rows() * m.mask.Cols()
	if total == 0 {
		return false
	}
	return float64(gocv.CountNonZero(m.mask))/float64(total) > m.Threshold
}

func (m *Motion) Close() {
	m.d.Close()
	m.blur.Close()
	m.fg.Close()
	m.mask.Close()
	m.st3.Close()
}

// Watch samples src every interval and feeds the motion result to gate
// until ctx is done.
func Watch(ctx context.Context, src source.Source, gate *recognition.IdleGate, interval time.Duration) error {
	m := NewMotion()
	defer m.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		f, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		moving := m.Detect(f.Mat)
		f.Close()
		if moving {
			log.Debugf("Motion detected")
		}
		gate.Observe(moving, time.Now())
	}
}
