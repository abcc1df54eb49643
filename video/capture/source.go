package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPollRate is the acquisition rate in Hz.
const DefaultPollRate = 30.0

// stopTimeout bounds how long Stop waits for the acquisition goroutine.
const stopTimeout = 2 * time.Second

// ErrStopped is returned by Read when the source was stopped before any
// frame arrived.
var ErrStopped = errors.New("capture stopped before the first frame")

// Grabber is the transport behind a Source.
type Grabber[T any] interface {
	// Grab blocks until the next frame is available. It is only called from
	// the acquisition goroutine.
	Grab(ctx context.Context) (T, error)

	// Recover is called after a failed Grab, once the backoff delay has
	// passed, to re-establish the transport.
	Recover(ctx context.Context) error

	// Close releases the transport.
	Close() error
}

// Hooks observe acquisition, e.g. for metrics. Nil hooks are skipped.
type Hooks struct {
	OnFrame func()
	OnError func(err error)
}

// Options configures a Source.
type Options struct {
	// PollRate is the maximum acquisition rate in Hz. Zero means
	// DefaultPollRate.
	PollRate float64
	// Backoff is applied after each failed Grab. The zero value means
	// DefaultBackoff.
	Backoff Backoff
	Hooks   Hooks
}

// Source decouples a Grabber running on its own goroutine from a consumer
// that reads the newest frame at arbitrary times.
type Source[T any] struct {
	name    string
	grabber Grabber[T]
	slot    *Slot[T]
	opts    Options

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSource wraps grabber. clone and release manage frame ownership, see
// NewSlot.
func NewSource[T any](name string, grabber Grabber[T], clone func(T) T, release func(T), opts Options) *Source[T] {
	if opts.PollRate <= 0 {
		opts.PollRate = DefaultPollRate
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff
	}
	return &Source[T]{
		name:    name,
		grabber: grabber,
		slot:    NewSlot(clone, release),
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Name identifies the source in logs and metrics.
func (s *Source[T]) Name() string {
	return s.name
}

// Start begins background acquisition. Subsequent calls do nothing.
func (s *Source[T]) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go func() {
			defer close(s.done)
			defer func() {
				if err := s.grabber.Close(); err != nil {
					log.WithField("source", s.name).Warnf("Failed to release capture: %v", err)
				}
			}()
			if err := s.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithField("source", s.name).Errorf("Capture terminated: %v", err)
			}
		}()
	})
}

// Read returns a copy of the newest frame. It blocks until the first frame
// has been captured and never blocks afterwards.
func (s *Source[T]) Read() (T, error) {
	v, ok := s.slot.Get()
	if !ok {
		return v, ErrStopped
	}
	return v, nil
}

// Primed reports whether at least one frame has been captured.
func (s *Source[T]) Primed() bool {
	return s.slot.Primed()
}

// Stop halts acquisition and releases the transport. The acquisition
// goroutine is given a short grace period to exit; a transport blocked in a
// read is left to terminate with the process.
func (s *Source[T]) Stop() {
	s.stopOnce.Do(func() {
		log.WithField("source", s.name).Infof("Terminating %s capture...", s.name)
		started := false
		s.startOnce.Do(func() {})
		if s.cancel != nil {
			started = true
			s.cancel()
		}
		if started {
			select {
			case <-s.done:
			case <-time.After(stopTimeout):
				log.WithField("source", s.name).Warnf("Capture did not stop within %v", stopTimeout)
			}
		} else if err := s.grabber.Close(); err != nil {
			log.WithField("source", s.name).Warnf("Failed to release capture: %v", err)
		}
		s.slot.Close()
	})
}

func (s *Source[T]) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.PollRate))
	defer ticker.Stop()

	clog := log.WithField("source", s.name)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		v, err := s.grabber.Grab(ctx)
		if err == nil {
			if failures > 0 {
				clog.Infof("Capture recovered after %d failures", failures)
			}
			failures = 0
			s.slot.Put(v)
			if s.opts.Hooks.OnFrame != nil {
				s.opts.Hooks.OnFrame()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		if s.opts.Hooks.OnError != nil {
			s.opts.Hooks.OnError(err)
		}
		delay, ok := s.opts.Backoff.Next(failures)
		if !ok {
			return fmt.Errorf("giving up after %d consecutive failures: %w", failures-1, err)
		}
		clog.Warnf("Error reading %s frame, retrying in %v: %v", s.name, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if err := s.grabber.Recover(ctx); err != nil {
			clog.Warnf("Failed to reconnect to %s stream: %v", s.name, err)
		}
	}
}
