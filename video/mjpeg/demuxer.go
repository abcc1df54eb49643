package mjpeg

import (
	"bytes"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxBuffer bounds the pending bytes held while waiting for an end of
// image marker.
const DefaultMaxBuffer = 8 << 20 // 8 MiB

var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// Demuxer splits a byte stream of concatenated JPEG images, such as the body
// of an mjpg-streamer response, into individual JPEG frames. Multipart
// boundaries and headers between images are skipped since only SOI/EOI
// markers are considered.
//
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	// MaxBuffer caps the pending buffer. When exceeded the buffer is dropped
	// and scanning restarts at the next chunk. Zero means DefaultMaxBuffer.
	MaxBuffer int

	// OnReset, if set, is invoked whenever the buffer is dropped.
	OnReset func(dropped int)

	buf []byte
}

// Write appends chunk to the pending buffer and returns every complete frame
// that can be extracted. The returned slices are owned by the caller.
func (d *Demuxer) Write(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		start := bytes.Index(d.buf, soi)
		if start < 0 {
			// Keep a trailing 0xFF, it may be the first half of a split SOI.
			if n := len(d.buf); n > 0 && d.buf[n-1] == 0xFF {
				d.buf = append(d.buf[:0], 0xFF)
			} else {
				d.buf = d.buf[:0]
			}
			break
		}
		end := bytes.Index(d.buf[start+len(soi):], eoi)
		if end < 0 {
			// Retain from SOI onward and wait for more data.
			d.buf = append(d.buf[:0], d.buf[start:]...)
			break
		}
		end += start + len(soi) + len(eoi)

		frame := make([]byte, end-start)
		copy(frame, d.buf[start:end])
		frames = append(frames, frame)

		d.buf = append(d.buf[:0], d.buf[end:]...)
	}

	if max := d.maxBuffer(); len(d.buf) > max {
		dropped := len(d.buf)
		d.buf = d.buf[:0]
		log.Warnf("MJPEG demuxer dropped %d buffered bytes without end of image marker", dropped)
		if d.OnReset != nil {
			d.OnReset(dropped)
		}
	}
	return frames
}

// Buffered returns the number of bytes waiting for a complete frame.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Reset discards any partial frame, e.g. after the underlying stream was
// reconnected.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
}

func (d *Demuxer) maxBuffer() int {
	if d.MaxBuffer > 0 {
		return d.MaxBuffer
	}
	return DefaultMaxBuffer
}
