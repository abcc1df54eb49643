package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facerec/video/capture"
)

var errReadFailed = errors.New("failed to read frame")

// openCapture opens device (an index, a file or URL, or a GStreamer
// pipeline) with minimal internal buffering so reads return live frames.
func openCapture(device interface{}) (*gocv.VideoCapture, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrNotOpened
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return vc, nil
}

// videoCapture grabs frames from an OpenCV VideoCapture.
type videoCapture struct {
	name   string
	device interface{}
	// reopen is set for network streams, whose handle is replaced after
	// a failure. Local devices keep the handle opened at construction.
	reopen bool

	vc   *gocv.VideoCapture
	pool *MatPool
}

func (v *videoCapture) Grab(ctx context.Context) (*Frame, error) {
	if v.vc == nil {
		return nil, ErrNotOpened
	}
	f := v.pool.NewFrame()
	f.Time = time.Now()
	if ok := v.vc.Read(&f.Mat); !ok || f.Mat.Empty() {
		f.Close()
		return nil, errReadFailed
	}
	return f, nil
}

func (v *videoCapture) Recover(ctx context.Context) error {
	if !v.reopen {
		return nil
	}
	if v.vc != nil {
		v.vc.Close()
		v.vc = nil
	}
	vc, err := openCapture(v.device)
	if err != nil {
		return err
	}
	v.vc = vc
	log.Infof("Reconnected to %s stream", v.name)
	return nil
}

func (v *videoCapture) Close() error {
	defer v.pool.Close()
	if v.vc == nil {
		return nil
	}
	err := v.vc.Close()
	v.vc = nil
	return err
}

// NewDevice opens a local camera by index (e.g. 0) or by path or pipeline.
// Failure to open is fatal to the caller; once open the handle is never
// replaced.
func NewDevice(device interface{}, opts capture.Options) (Source, error) {
	vc, err := openCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %v: %w", device, err)
	}
	g := &videoCapture{
		name:   "device",
		device: device,
		vc:     vc,
		pool:   NewMatPool(0),
	}
	return newSource("device", g, opts), nil
}

// WithCredentials injects user and password into an RTSP URL. The URL is
// returned unchanged if either is empty or it is not an rtsp URL.
func WithCredentials(rawURL, user, password string) string {
	if user == "" || password == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasPrefix(strings.ToLower(u.Scheme), "rtsp") {
		return rawURL
	}
	u.User = url.UserPassword(user, password)
	return u.String()
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

// NewNetworkStream opens an RTSP stream. The initial connection must
// succeed; later failures release and reopen the connection.
func NewNetworkStream(rawURL, user, password string, opts capture.Options) (Source, error) {
	full := WithCredentials(rawURL, user, password)
	vc, err := openCapture(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open RTSP stream %s: %w", redact(full), err)
	}
	g := &videoCapture{
		name:   "rtsp",
		device: full,
		reopen: true,
		vc:     vc,
		pool:   NewMatPool(0),
	}
	return newSource("rtsp", g, opts), nil
}
