package recognition

import (
	"image"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 10, 14, 34, 21, 0, time.UTC)

var params = Params{LogoutDelay: 5 * time.Second, UnknownDebounce: DefaultUnknownDebounce}

func face(label int, confidence float64) Observation {
	return Observation{FaceFound: true, Result: Result{Label: label, Confidence: confidence}}
}

var noFace = Observation{}

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func TestStepScenarioLoginThenLogout(t *testing.T) {
	s := NewState(t0)
	type tickEvents struct {
		tick   int
		events []Event
	}
	var got []tickEvents

	tick := 0
	for i := 0; i < 3; i++ {
		tick++
		if ev := Step(&s, face(7, 31.5), at(float64(tick)), params); len(ev) > 0 {
			got = append(got, tickEvents{tick, ev})
		}
	}
	for i := 0; i < 6; i++ {
		tick++
		if ev := Step(&s, noFace, at(float64(tick)), params); len(ev) > 0 {
			got = append(got, tickEvents{tick, ev})
		}
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 ticks with events, got %+v", got)
	}
	login := got[0]
	if login.tick != 1 || len(login.events) != 1 || login.events[0].Kind != EventLogin || login.events[0].User != 7 {
		t.Errorf("Expected login(7) at tick 1, got %+v", login)
	}
	if c := login.events[0].Confidence; c == nil || *c != 31.5 {
		t.Errorf("Expected confidence 31.5, got %v", c)
	}
	logout := got[1]
	// Last match at tick 3; elapsed exceeds 5s at tick 9, the 6th tick without a face.
	if logout.tick != 9 || len(logout.events) != 1 || logout.events[0].Kind != EventLogout || logout.events[0].User != 7 {
		t.Errorf("Expected logout(7) at tick 9, got %+v", logout)
	}
	if s.CurrentUser != nil {
		t.Errorf("Expected no current user, got %d", *s.CurrentUser)
	}
}

func TestStepNoRepeatedLogout(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(2, 10), at(0), params)

	logouts := 0
	for sec := 1; sec <= 30; sec++ {
		for _, e := range Step(&s, noFace, at(float64(sec)), params) {
			if e.Kind == EventLogout {
				logouts++
			}
		}
	}
	if logouts != 1 {
		t.Errorf("Expected exactly one logout, got %d", logouts)
	}
	if s.SameUserStreak != 0 {
		t.Errorf("Expected streak reset on logout, got %d", s.SameUserStreak)
	}
}

func TestStepNoLogoutWithinDelay(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(2, 10), at(0), params)
	if ev := Step(&s, noFace, at(5), params); len(ev) != 0 {
		t.Errorf("Elapsed == logoutDelay must not log out, got %+v", ev)
	}
	if ev := Step(&s, noFace, at(5.001), params); len(ev) != 1 {
		t.Errorf("Expected logout once elapsed exceeds delay, got %+v", ev)
	}
}

func TestStepNoFaceWithoutUserIsNoop(t *testing.T) {
	s := NewState(t0)
	if ev := Step(&s, noFace, at(100), params); len(ev) != 0 {
		t.Errorf("Expected no events without a current user, got %+v", ev)
	}
}

func TestStepSameLabelLogsInOnce(t *testing.T) {
	s := NewState(t0)
	logins := 0
	for i := 1; i <= 10; i++ {
		logins += len(Step(&s, face(4, 20), at(float64(i)), params))
	}
	if logins != 1 {
		t.Errorf("Expected one login for repeated label, got %d", logins)
	}
	if s.SameUserStreak != 10 {
		t.Errorf("SameUserStreak = %d, want 10", s.SameUserStreak)
	}
	if s.LastMatch == nil || *s.LastMatch != 4 {
		t.Errorf("LastMatch = %v, want 4", s.LastMatch)
	}
	if !s.LoginAt.Equal(at(10)) {
		t.Errorf("LoginAt = %v, want refreshed on each match", s.LoginAt)
	}
}

func TestStepSwitchBetweenKnownUsers(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(1, 20), at(1), params)
	ev := Step(&s, face(2, 25), at(2), params)
	if len(ev) != 1 || ev[0].Kind != EventLogin || ev[0].User != 2 {
		t.Fatalf("Expected login(2) on transition, got %+v", ev)
	}
	if *s.CurrentUser != 2 || s.SameUserStreak != 1 {
		t.Errorf("State after switch = %+v", s)
	}
}

func TestStepUnknownDebounce(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(3, 15), at(0), params)

	// A misread within the debounce window keeps the known user.
	for _, sec := range []float64{1, 2, 3, 4, 5} {
		if ev := Step(&s, face(LabelBelowThreshold, 120), at(sec), params); len(ev) != 0 {
			t.Fatalf("Unexpected events at %vs: %+v", sec, ev)
		}
	}
	if *s.CurrentUser != 3 {
		t.Fatalf("Known user demoted during debounce")
	}

	ev := Step(&s, face(LabelUnknown, 80), at(5.5), params)
	if len(ev) != 1 || ev[0].Kind != EventLogin || ev[0].User != LabelUnknown || ev[0].Confidence != nil {
		t.Fatalf("Expected login(0, null) after debounce, got %+v", ev)
	}
	if !s.LoginAt.Equal(at(5.5)) {
		t.Errorf("LoginAt not refreshed on unknown flip")
	}

	// Already unknown: no further events.
	for _, sec := range []float64{20, 40} {
		if ev := Step(&s, face(LabelBelowThreshold, 99), at(sec), params); len(ev) != 0 {
			t.Errorf("Unexpected repeat unknown login at %vs: %+v", sec, ev)
		}
	}
}

func TestStepUnknownCountsFromSessionStart(t *testing.T) {
	s := NewState(t0)
	if ev := Step(&s, face(LabelUnknown, 0), at(4), params); len(ev) != 0 {
		t.Errorf("Expected no event within 5s of start, got %+v", ev)
	}
	if ev := Step(&s, face(LabelUnknown, 0), at(6), params); len(ev) != 1 || ev[0].User != LabelUnknown {
		t.Errorf("Expected unknown login after 5s, got %+v", ev)
	}
}

func TestStepUnknownUserLogsOut(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(LabelUnknown, 0), at(6), params)
	ev := Step(&s, noFace, at(12), params)
	if len(ev) != 1 || ev[0].Kind != EventLogout || ev[0].User != LabelUnknown {
		t.Errorf("Expected logout(0), got %+v", ev)
	}
}

func TestStepKnownAfterUnknown(t *testing.T) {
	s := NewState(t0)
	Step(&s, face(LabelUnknown, 0), at(6), params)
	ev := Step(&s, face(9, 12), at(7), params)
	if len(ev) != 1 || ev[0].User != 9 {
		t.Errorf("Expected immediate login(9) over unknown, got %+v", ev)
	}
}

func TestFaceCrop(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)
	size := image.Point{X: 92, Y: 112}

	// 92 wide -> 112 tall, centered on the box.
	got := FaceCrop(image.Rect(100, 100, 192, 192), bounds, size)
	want := image.Rect(100, 90, 192, 202)
	if got != want {
		t.Errorf("FaceCrop = %v, want %v", got, want)
	}

	// Clipped at the top of the image.
	got = FaceCrop(image.Rect(10, 0, 102, 40), bounds, size)
	if got.Min.Y != 0 || got.Min.X != 10 || got.Max.X != 102 {
		t.Errorf("FaceCrop = %v, expected clipping to bounds", got)
	}
	if !got.In(bounds) {
		t.Errorf("FaceCrop %v outside %v", got, bounds)
	}
}
