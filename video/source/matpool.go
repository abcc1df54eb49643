package source

import (
	"gocv.io/x/gocv"

	"facerec/video/capture"
)

// DefaultPoolLimit is the allocation count after which the pool warns about
// frames that are probably never closed.
const DefaultPoolLimit = 64

// MatPool recycles Mats between acquisition and the capture slot.
type MatPool struct {
	pool *capture.Pool[gocv.Mat]
}

func NewMatPool(limit int) *MatPool {
	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	return &MatPool{
		pool: capture.NewPool(limit, gocv.NewMat, func(m gocv.Mat) { m.Close() }),
	}
}

// NewFrame returns an empty frame backed by a pooled Mat.
func (p *MatPool) NewFrame() *Frame {
	return &Frame{Mat: p.pool.Get(), pool: p}
}

// ReleaseMat returns m to the pool.
func (p *MatPool) ReleaseMat(m gocv.Mat) {
	p.pool.Put(m)
}

// Close frees idle Mats. Mats still in use are freed when their frames are
// closed, after which the pool goroutine exits.
func (p *MatPool) Close() {
	p.pool.Close()
}
