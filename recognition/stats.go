package recognition

import (
	"math"
	"strconv"
)

// Confidence32 converts a single precision classifier distance so that it
// formats with the digits of the float32 value (45.3, not 45.29999923706055).
func Confidence32(c float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(c), 'f', -1, 32), 64)
	if err != nil {
		return float64(c)
	}
	return v
}

// Brightness returns the mean and population standard deviation of 8-bit
// grayscale pixels.
func Brightness(pix []byte) (mean, stddev float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, p := range pix {
		v := float64(p)
		sum += v
		sq += v * v
	}
	n := float64(len(pix))
	mean = sum / n
	return mean, math.Sqrt(math.Max(sq/n-mean*mean, 0))
}
