// Package recognition turns per-tick face classifications into debounced
// login and logout transitions.
package recognition

import (
	"time"
)

// Reserved labels produced by the classifier.
const (
	// LabelBelowThreshold means the best match exceeded the confidence
	// threshold.
	LabelBelowThreshold = -1
	// LabelUnknown is the class of the negative training images. It also
	// identifies an unknown person in login events.
	LabelUnknown = 0
)

// DefaultUnknownDebounce is how long a known user keeps their login while
// their face is misclassified.
const DefaultUnknownDebounce = 5 * time.Second

// Result is one classifier prediction.
type Result struct {
	Label      int
	Confidence float64
}

// Known reports whether the label identifies a trained user.
func (r Result) Known() bool {
	return r.Label != LabelBelowThreshold && r.Label != LabelUnknown
}

// Observation is what one tick saw.
type Observation struct {
	FaceFound bool
	// Result is only meaningful when FaceFound is set.
	Result Result
}

// Params are the timing parameters of Step.
type Params struct {
	// LogoutDelay is how long no face may be visible before the current
	// user is logged out.
	LogoutDelay time.Duration
	// UnknownDebounce is how long since the last known match before an
	// unrecognized face replaces the current user.
	UnknownDebounce time.Duration
}

// State is the session state carried between ticks.
type State struct {
	// CurrentUser is nil when nobody is logged in. LabelUnknown means an
	// unknown person is present.
	CurrentUser *int
	LastMatch   *int
	// LoginAt is refreshed on every known match and on the unknown flip.
	LoginAt        time.Time
	SameUserStreak int
}

// NewState returns the state at session start. The unknown debounce counts
// from start.
func NewState(now time.Time) State {
	return State{LoginAt: now}
}

type EventKind int

const (
	EventLogin EventKind = iota
	EventLogout
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Event is a presence transition. Confidence is nil for logouts and for
// logins of an unknown face.
type Event struct {
	Kind       EventKind
	User       int
	Confidence *float64
}

func intp(v int) *int { return &v }

func isUser(p *int, user int) bool {
	return p != nil && *p == user
}

// Step applies one tick's observation to s and returns the resulting
// events, if any. It is a pure function of its inputs.
func Step(s *State, obs Observation, now time.Time, p Params) []Event {
	if !obs.FaceFound {
		if s.CurrentUser != nil && now.Sub(s.LoginAt) > p.LogoutDelay {
			user := *s.CurrentUser
			s.CurrentUser = nil
			s.SameUserStreak = 0
			return []Event{{Kind: EventLogout, User: user}}
		}
		return nil
	}

	res := obs.Result
	if res.Known() {
		s.LoginAt = now
		var events []Event
		if isUser(s.CurrentUser, res.Label) {
			s.SameUserStreak++
		} else {
			s.CurrentUser = intp(res.Label)
			s.SameUserStreak = 1
			conf := res.Confidence
			events = append(events, Event{Kind: EventLogin, User: res.Label, Confidence: &conf})
		}
		s.LastMatch = intp(res.Label)
		return events
	}

	if !isUser(s.CurrentUser, LabelUnknown) && now.Sub(s.LoginAt) > p.UnknownDebounce {
		s.LoginAt = now
		s.CurrentUser = intp(LabelUnknown)
		s.SameUserStreak = 0
		return []Event{{Kind: EventLogin, User: LabelUnknown}}
	}
	return nil
}
