package source

import (
	"errors"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facerec/config"
	"facerec/metrics"
	"facerec/video/capture"
)

var ErrNotOpened = errors.New("capture device not opened")

// Frame is a captured image. It is owned by whoever received it and must be
// closed exactly once.
type Frame struct {
	Mat  gocv.Mat
	Time time.Time

	pool   *MatPool
	closed bool
}

// Close releases the underlying Mat, returning it to its pool if it came
// from one.
func (f *Frame) Close() {
	if f.closed {
		panic("frame already closed")
	}
	f.closed = true
	if f.pool != nil {
		f.pool.ReleaseMat(f.Mat)
		return
	}
	f.Mat.Close()
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	n := &Frame{
		Mat:  gocv.NewMat(),
		Time: f.Time,
	}
	f.Mat.CopyTo(&n.Mat)
	return n
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	return image.Point{X: f.Mat.Cols(), Y: f.Mat.Rows()}
}

// JPEG encodes the frame, e.g. for the preview stream.
func (f *Frame) JPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Source defines a camera that is sampled in the background. Read returns
// the newest frame, blocking only until the first frame has been captured.
type Source interface {
	Name() string
	Start()
	Read() (*Frame, error)
	Stop()
}

func cloneFrame(f *Frame) *Frame { return f.Clone() }
func releaseFrame(f *Frame)      { f.Close() }

func newSource(name string, g capture.Grabber[*Frame], opts capture.Options) *capture.Source[*Frame] {
	opts.Hooks = capture.Hooks{
		OnFrame: metrics.FramesCaptured.WithLabelValues(name).Inc,
		OnError: func(error) { metrics.CaptureErrors.WithLabelValues(name).Inc() },
	}
	return capture.NewSource[*Frame](name, g, cloneFrame, releaseFrame, opts)
}

// Open constructs the camera selected by c, trying each backend in the
// configured preference order. Failures of preferred backends are logged
// and the next one is tried; the last failure is returned.
func Open(c *config.Config, opts capture.Options) (Source, error) {
	var lastErr error
	for _, kind := range c.Preference() {
		s, err := openKind(kind, c, opts)
		if err == nil {
			return s, nil
		}
		lastErr = err
		log.Warnf("Camera %s unavailable: %v", kind, err)
	}
	return nil, lastErr
}

func openKind(kind string, c *config.Config, opts capture.Options) (Source, error) {
	switch kind {
	case config.CameraRTSP:
		log.Infof("RTSP selected...")
		return NewNetworkStream(c.RTSPURL, c.RTSPUser, c.RTSPPassword, opts)
	case config.CameraMJPEG:
		log.Infof("Mjpg-Streamer selected...")
		return NewHTTPStream(c.MjpgStreamerURL, c.MjpgStreamerUser, c.MjpgStreamerPassword, opts)
	case config.CameraDevice:
		log.Infof("Camera device selected...")
		return NewDevice(c.DevicePath, opts)
	case config.CameraUSB:
		log.Infof("Webcam selected...")
		return NewDevice(c.DeviceIndex, opts)
	}
	return nil, fmt.Errorf("unknown camera %q", kind)
}
