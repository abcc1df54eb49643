package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultChunkSize is the read size used on the stream body.
	DefaultChunkSize = 1024
	// DefaultTimeout bounds connecting, waiting for headers and each body
	// read.
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrStatus is returned when the server answers with a non-2xx status.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrStalled is returned when no data arrived within the timeout.
	ErrStalled = errors.New("stream stalled")
	// ErrEnded is returned when the server closed the stream.
	ErrEnded = errors.New("stream ended")
)

// Stream reads JPEG frames from an HTTP multipart stream such as the one
// served by mjpg-streamer. It satisfies capture.Grabber[[][]byte] and is
// not safe for concurrent use.
type Stream struct {
	URL      string
	User     string
	Password string

	Timeout   time.Duration
	ChunkSize int
	Client    *http.Client

	demux Demuxer
	body  io.ReadCloser
	chunk []byte
}

// NewStream returns a stream for rawURL. Credentials are sent with basic
// auth when both are set. No connection is made until the first Grab.
func NewStream(rawURL, user, password string) *Stream {
	s := &Stream{
		URL:       rawURL,
		User:      user,
		Password:  password,
		Timeout:   DefaultTimeout,
		ChunkSize: DefaultChunkSize,
	}
	dialer := &net.Dialer{Timeout: s.Timeout}
	s.Client = &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: s.Timeout,
			TLSHandshakeTimeout:   s.Timeout,
		},
	}
	return s
}

// OnReset is invoked whenever the demuxer drops its buffer.
func (s *Stream) OnReset(f func(dropped int)) {
	s.demux.OnReset = f
}

func (s *Stream) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Stream) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}
	if s.User != "" && s.Password != "" {
		req.SetBasicAuth(s.User, s.Password)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	log.WithField("source", "mjpeg").Infof("Connected to %s", redact(s.URL))
	s.body = resp.Body
	s.demux.Reset()
	n := s.ChunkSize
	if n <= 0 {
		n = DefaultChunkSize
	}
	if len(s.chunk) != n {
		s.chunk = make([]byte, n)
	}
	return nil
}

func (s *Stream) disconnect() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
}

// read returns the next chunk from the body, closing it if no data arrives
// within the timeout.
func (s *Stream) read() ([]byte, error) {
	body := s.body
	stall := time.AfterFunc(s.timeout(), func() { body.Close() })
	n, err := body.Read(s.chunk)
	if !stall.Stop() && err != nil {
		err = fmt.Errorf("%w: no data for %v", ErrStalled, s.timeout())
	}
	if err == io.EOF {
		err = ErrEnded
	}
	return s.chunk[:n], err
}

// Grab reads until at least one complete frame is available and returns
// every frame extracted from the last chunk, oldest first. A read error
// drops the connection; the next Grab or Recover reconnects.
func (s *Stream) Grab(ctx context.Context) ([][]byte, error) {
	if s.body == nil {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}
	for {
		chunk, err := s.read()
		frames := s.demux.Write(chunk)
		if err != nil {
			s.disconnect()
			if len(frames) > 0 {
				return frames, nil
			}
			return nil, err
		}
		if len(frames) > 0 {
			return frames, nil
		}
	}
}

// Recover drops the current connection and requests the stream again.
func (s *Stream) Recover(ctx context.Context) error {
	s.disconnect()
	return s.connect(ctx)
}

func (s *Stream) Close() error {
	s.disconnect()
	if s.Client != nil {
		s.Client.CloseIdleConnections()
	}
	return nil
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

// DecodeNewest decodes jpgs and returns the newest frame that decodes;
// older decoded frames are released. Each failure is passed to onError, if
// set, and logged as a warning.
func DecodeNewest[T any](jpgs [][]byte, decode func([]byte) (T, error), release func(T), onError func(error)) (newest T, ok bool) {
	for _, jpg := range jpgs {
		v, err := decode(jpg)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			log.WithField("source", "mjpeg").Warnf("Failed to decode %d byte frame: %v", len(jpg), err)
			continue
		}
		if ok {
			release(newest)
		}
		newest, ok = v, true
	}
	return newest, ok
}
