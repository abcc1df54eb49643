package capture

import (
	log "github.com/sirupsen/logrus"
)

// Pool recycles values between acquisition and the capture slot so steady
// state capture does not allocate. The pool goroutine exits once the pool
// is closed and every value handed out has been returned.
type Pool[T any] struct {
	new   chan chan T
	free  chan T
	close chan bool
	done  chan struct{}

	alloc   func() T
	dispose func(T)

	limit     int
	allocated int
	available []T
	warned    bool
}

// NewPool starts a pool. alloc creates values and dispose destroys them.
// limit is the allocation count above which the pool warns about values
// that are probably never returned.
func NewPool[T any](limit int, alloc func() T, dispose func(T)) *Pool[T] {
	p := &Pool[T]{
		new:     make(chan chan T),
		free:    make(chan T),
		close:   make(chan bool),
		done:    make(chan struct{}),
		alloc:   alloc,
		dispose: dispose,
		limit:   limit,
	}
	go p.loop()
	return p
}

func (p *Pool[T]) loop() {
	defer close(p.done)
	closed := false
	for !closed || p.allocated > 0 {
		select {
		case <-p.close:
			closed = true
			for _, v := range p.available {
				p.dispose(v)
				p.allocated--
			}
			p.available = nil
		case v := <-p.free:
			if closed || len(p.available) >= p.limit {
				p.dispose(v)
				p.allocated--
			} else {
				p.available = append(p.available, v)
			}
		case r := <-p.new:
			var v T
			if n := len(p.available); n > 0 {
				v, p.available = p.available[n-1], p.available[:n-1]
			} else {
				v = p.alloc()
				p.allocated++
				if p.allocated > p.limit && !p.warned {
					p.warned = true
					log.Warnf("Pool holds %d values; is a frame not being closed?", p.allocated)
				}
			}
			r <- v
		}
	}
}

// Get returns a pooled value, or a fresh one once the pool has stopped.
func (p *Pool[T]) Get() T {
	r := make(chan T)
	select {
	case p.new <- r:
		return <-r
	case <-p.done:
		return p.alloc()
	}
}

// Put returns v to the pool. Values returned after the pool stopped are
// disposed of directly.
func (p *Pool[T]) Put(v T) {
	select {
	case p.free <- v:
	case <-p.done:
		p.dispose(v)
	}
}

// Close disposes of idle values. Values still handed out are disposed of
// as they are returned. Close may be called more than once.
func (p *Pool[T]) Close() {
	select {
	case p.close <- true:
	case <-p.done:
	}
}

// Done is closed when the pool goroutine has exited.
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}
