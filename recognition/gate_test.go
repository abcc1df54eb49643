package recognition

import (
	"testing"
	"time"
)

func TestIdleGate(t *testing.T) {
	var changes []bool
	g := &IdleGate{Idle: 10 * time.Second, Set: func(a bool) { changes = append(changes, a) }}

	steps := []struct {
		sec    float64
		moving bool
		want   bool
	}{
		{0, false, true},
		{5, true, true},
		{15, false, true},
		{15.5, false, false},
		{30, false, false},
		{31, true, true},
		{35, false, true},
	}
	for _, s := range steps {
		if got := g.Observe(s.moving, at(s.sec)); got != s.want {
			t.Errorf("Observe(%v) at %vs = %v, want %v", s.moving, s.sec, got, s.want)
		}
	}
	if len(changes) != 2 || changes[0] || !changes[1] {
		t.Errorf("Expected pause then resume, got %v", changes)
	}
}
