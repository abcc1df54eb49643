package recognition

import (
	"image"
)

// FaceCrop widens or narrows the vertical extent of a detected face box so
// it has the aspect ratio of the training images (size), centered on the
// box and clipped to bounds. The horizontal extent is kept as detected.
func FaceCrop(box, bounds image.Rectangle, size image.Point) image.Rectangle {
	if size.X <= 0 || size.Y <= 0 || box.Dx() <= 0 {
		return box.Intersect(bounds)
	}
	h := size.Y * box.Dx() / size.X
	midY := box.Min.Y + box.Dy()/2
	r := image.Rect(box.Min.X, midY-h/2, box.Max.X, midY-h/2+h)
	return r.Intersect(bounds)
}
