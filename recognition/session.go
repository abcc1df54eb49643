package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"facerec/event"
	"facerec/metrics"
)

// Frame is a captured image owned by the caller until closed.
type Frame interface {
	Close()
}

// FrameSource provides the newest captured frame.
type FrameSource[F Frame] interface {
	Read() (F, error)
}

// Recognizer is the face detection and classification capability.
type Recognizer[F Frame] interface {
	// DetectSingle returns the bounding box of the only face in frame. It
	// reports false when there is no face or more than one.
	DetectSingle(frame F) (image.Rectangle, bool)
	// Predict classifies the face inside box.
	Predict(frame F, box image.Rectangle) (Result, error)
}

// Session drives recognition at a fixed interval and publishes presence
// transitions.
type Session[F Frame] struct {
	Source     FrameSource[F]
	Recognizer Recognizer[F]
	Publisher  event.Publisher

	// Interval between ticks.
	Interval time.Duration
	// Params is consulted on every tick so timing can be reconfigured while
	// running.
	Params func() Params
	// Now defaults to time.Now.
	Now func() time.Time

	state  State
	primed bool
	idle   atomic.Bool
}

// SetDetectionActive pauses (false) or resumes (true) recognition. Paused
// ticks are skipped entirely. Safe to call from any goroutine.
func (s *Session[F]) SetDetectionActive(active bool) {
	if s.idle.Swap(!active) != !active {
		log.Infof("Detection active: %v", active)
	}
	if active {
		metrics.DetectionActive.Set(1)
	} else {
		metrics.DetectionActive.Set(0)
	}
}

// DetectionActive reports whether ticks are processed.
func (s *Session[F]) DetectionActive() bool {
	return !s.idle.Load()
}

// State returns a copy of the session state.
func (s *Session[F]) State() State {
	return s.state
}

func (s *Session[F]) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Session[F]) params() Params {
	p := Params{UnknownDebounce: DefaultUnknownDebounce}
	if s.Params != nil {
		p = s.Params()
		if p.UnknownDebounce == 0 {
			p.UnknownDebounce = DefaultUnknownDebounce
		}
	}
	return p
}

func (s *Session[F]) init() {
	if !s.primed {
		s.state = NewState(s.now())
		s.primed = true
		s.SetDetectionActive(s.DetectionActive())
	}
}

// Run ticks until ctx is done. It returns nil on cancellation and the error
// of the first tick that fails otherwise.
func (s *Session[F]) Run(ctx context.Context) error {
	s.init()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.Tick(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Tick runs one recognition cycle. Classifier failures are returned to the
// caller; the process is expected to exit and be restarted by its parent.
func (s *Session[F]) Tick() error {
	s.init()
	if !s.DetectionActive() {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	frame, err := s.Source.Read()
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}
	defer frame.Close()

	var obs Observation
	box, found := s.Recognizer.DetectSingle(frame)
	if found {
		log.Debugf("Face detected at %v, size %dx%d", box.Min, box.Dx(), box.Dy())
		res, err := s.Recognizer.Predict(frame, box)
		if err != nil {
			return fmt.Errorf("failed to classify face: %w", err)
		}
		obs = Observation{FaceFound: true, Result: res}
		log.Debugf("Recognition result - Label: %d, Confidence: %v", res.Label, res.Confidence)
	} else {
		log.Debugf("No face detected in image")
	}
	metrics.Ticks.WithLabelValues(outcome(obs)).Inc()

	events := Step(&s.state, obs, s.now(), s.params())
	log.Debugf("Same user detected in row: %d, last match: %s, current user: %s",
		s.state.SameUserStreak, userString(s.state.LastMatch), userString(s.state.CurrentUser))

	for _, e := range events {
		if err := s.publish(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session[F]) publish(e Event) error {
	metrics.PresenceEvents.WithLabelValues(e.Kind.String()).Inc()
	var err error
	switch e.Kind {
	case EventLogin:
		if e.User == LabelUnknown {
			log.Infof("Unknown face present")
		}
		err = s.Publisher.Login(e.User, e.Confidence)
	case EventLogout:
		log.Infof("Logging out user %d due to timeout", e.User)
		err = s.Publisher.Logout(e.User)
	default:
		err = errors.New("unknown event kind")
	}
	if err != nil {
		return fmt.Errorf("failed to publish %v for user %d: %w", e.Kind, e.User, err)
	}
	return nil
}

func outcome(obs Observation) string {
	switch {
	case !obs.FaceFound:
		return "no_face"
	case obs.Result.Known():
		return "known"
	default:
		return "unknown"
	}
}

func userString(u *int) string {
	if u == nil {
		return "none"
	}
	return fmt.Sprint(*u)
}
