// Package event writes the records consumed by the parent process: one JSON
// object per line, flushed as soon as it is written.
package event

import (
	"encoding/json"
	"io"
	"strconv"
	"sync"
)

// Publisher receives presence transitions.
type Publisher interface {
	Login(user int, confidence *float64) error
	Logout(user int) error
}

type loginRecord struct {
	User       int     `json:"user"`
	Confidence *string `json:"confidence"`
}

type logoutRecord struct {
	User int `json:"user"`
}

type flusher interface {
	Flush() error
}

// Sink serializes records to w. It is safe for concurrent use and also
// implements io.Writer so a logger can share the stream without
// interleaving partial lines.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Status writes a free-form diagnostic record.
func (s *Sink) Status(msg string) error {
	return s.emit(map[string]string{"status": msg})
}

// Login writes a login record. A nil confidence is encoded as null, which
// marks an unknown face.
func (s *Sink) Login(user int, confidence *float64) error {
	r := loginRecord{User: user}
	if confidence != nil {
		c := FormatConfidence(*confidence)
		r.Confidence = &c
	}
	return s.emit(map[string]loginRecord{"login": r})
}

// Logout writes a logout record.
func (s *Sink) Logout(user int) error {
	return s.emit(map[string]logoutRecord{"logout": {User: user}})
}

func (s *Sink) emit(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.Write(append(b, '\n'))
	return err
}

// Write writes p as-is and flushes. Callers are expected to pass whole lines.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// FormatConfidence renders a classifier distance the way the parent expects
// it: a decimal string with no trailing zeros.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
