package recognition

import (
	"math"
	"testing"

	"facerec/event"
)

func TestConfidence32Formatting(t *testing.T) {
	tests := map[float32]string{
		45.3:  "45.3",
		12.25: "12.25",
		0:     "0",
		99.99: "99.99",
	}
	for in, want := range tests {
		if got := event.FormatConfidence(Confidence32(in)); got != want {
			t.Errorf("FormatConfidence(Confidence32(%v)) = %q, want %q", in, got, want)
		}
	}
	if got := event.FormatConfidence(float64(float32(45.3))); got == "45.3" {
		t.Errorf("Plain widening unexpectedly formatted as %q", got)
	}
}

func TestBrightness(t *testing.T) {
	mean, std := Brightness([]byte{0, 255, 0, 255})
	if mean != 127.5 || math.Abs(std-127.5) > 1e-9 {
		t.Errorf("Brightness = %v, %v; want 127.5, 127.5", mean, std)
	}
	mean, std = Brightness([]byte{10, 10, 10})
	if mean != 10 || std != 0 {
		t.Errorf("Brightness of flat image = %v, %v", mean, std)
	}
	if mean, std := Brightness(nil); mean != 0 || std != 0 {
		t.Errorf("Brightness(nil) = %v, %v", mean, std)
	}
}
