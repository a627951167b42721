// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hostlink is the byte channel to the host computer.
//
// The control loop must never block on the host. Reads are polled with
// TryReadByte, which returns immediately; a goroutine owned by the link does
// the blocking reads on the underlying transport.
package hostlink

import (
	"errors"
	"io"
	"reflect"
	"sync"
)

var (
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("hostlink: closed")
	// ErrNotConfigured is returned by writes before the transport is up.
	ErrNotConfigured = errors.New("hostlink: transport not configured")
)

// Link is a byte oriented connection to the host.
type Link interface {
	// Configured reports whether the transport is up, e.g. the USB device
	// was enumerated.
	Configured() bool
	// Ready reports whether the host signaled it is listening, e.g. DTR.
	Ready() bool
	// TryReadByte returns the next received byte, if any. It never blocks.
	TryReadByte() (byte, bool)
	WriteByte(b byte) error
	WriteString(s string) error
	// Flush discards the input received so far.
	Flush() error
	Close() error
}

// readBuffer is the number of received bytes held until they are polled.
const readBuffer = 4096

// Stream is a Link over a reader and a writer. It is always configured and
// ready.
type Stream struct {
	w       io.Writer
	closers []io.Closer
	in      chan byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// NewStream starts reading r in the background. Close closes r and w if
// they are io.Closer, once if they are the same value.
func NewStream(r io.Reader, w io.Writer) *Stream {
	s := &Stream{
		w:    w,
		in:   make(chan byte, readBuffer),
		done: make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := w.(io.Closer); ok && !same(r, w) {
		s.closers = append(s.closers, c)
	}
	go s.read(r)
	return s
}

// same reports whether a and b hold the same comparable value.
func same(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta == tb && ta != nil && ta.Comparable() && a == b
}

func (s *Stream) read(r io.Reader) {
	defer close(s.in)
	var buf [64]byte
	for {
		n, err := r.Read(buf[:])
		for _, b := range buf[:n] {
			select {
			case s.in <- b:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
	}
}

// Configured implements Link.
func (s *Stream) Configured() bool {
	return true
}

// Ready implements Link.
func (s *Stream) Ready() bool {
	return true
}

// TryReadByte implements Link.
func (s *Stream) TryReadByte() (byte, bool) {
	select {
	case b, ok := <-s.in:
		return b, ok
	default:
		return 0, false
	}
}

// WriteByte implements Link.
func (s *Stream) WriteByte(b byte) error {
	return s.write([]byte{b})
}

// WriteString implements Link.
func (s *Stream) WriteString(str string) error {
	return s.write([]byte(str))
}

func (s *Stream) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.w.Write(p)
	return err
}

// Flush implements Link.
func (s *Stream) Flush() error {
	for {
		select {
		case _, ok := <-s.in:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

// Err returns the error that stopped the background reader, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements Link. Bytes still buffered are dropped.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

var _ Link = &Stream{}
