package source

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"facerec/metrics"
	"facerec/video/capture"
	"facerec/video/mjpeg"
)

// httpStream decodes the JPEG frames of an mjpeg.Stream.
type httpStream struct {
	stream *mjpeg.Stream
}

// NewHTTPStream returns a source reading an mjpg-streamer URL. Credentials
// are sent with basic auth when both are set. The connection is established
// by the acquisition goroutine, so an unreachable server is retried rather
// than failing construction.
func NewHTTPStream(url, user, password string, opts capture.Options) (Source, error) {
	if url == "" {
		return nil, errors.New("missing stream url")
	}
	s := mjpeg.NewStream(url, user, password)
	s.OnReset(func(dropped int) {
		metrics.DemuxerResets.WithLabelValues("mjpeg").Inc()
	})
	return newSource("mjpeg", &httpStream{stream: s}, opts), nil
}

// Grab returns the newest frame that decodes. Older frames from the same
// read are discarded.
func (h *httpStream) Grab(ctx context.Context) (*Frame, error) {
	for {
		jpgs, err := h.stream.Grab(ctx)
		if err != nil {
			return nil, err
		}
		mat, ok := mjpeg.DecodeNewest(jpgs, decode, closeMat, func(error) {
			metrics.DecodeErrors.WithLabelValues("mjpeg").Inc()
		})
		if ok {
			return &Frame{Mat: mat, Time: time.Now()}, nil
		}
	}
}

func decode(jpg []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(jpg, gocv.IMReadColor)
	if err != nil {
		return mat, err
	}
	if mat.Empty() {
		mat.Close()
		return mat, errors.New("empty image")
	}
	return mat, nil
}

func closeMat(m gocv.Mat) { m.Close() }

func (h *httpStream) Recover(ctx context.Context) error {
	return h.stream.Recover(ctx)
}

func (h *httpStream) Close() error {
	return h.stream.Close()
}
