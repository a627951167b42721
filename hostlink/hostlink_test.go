// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostlink

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// waitBuffered waits for the background reader to queue n bytes.
func waitBuffered(t *testing.T, s *Stream, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(s.in) < n {
		if time.Now().After(deadline) {
			t.Fatalf("%d bytes buffered, want %d", len(s.in), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamTryReadByte(t *testing.T) {
	r, w := io.Pipe()
	s := NewStream(r, io.Discard)
	defer s.Close()

	if b, ok := s.TryReadByte(); ok {
		t.Fatalf("TryReadByte() = %q with nothing sent", b)
	}
	go func() {
		_, _ = w.Write([]byte("+a"))
	}()
	waitBuffered(t, s, 2)
	var got []byte
	for {
		b, ok := s.TryReadByte()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "+a" {
		t.Errorf("read %q, want %q", got, "+a")
	}
}

func TestStreamFlush(t *testing.T) {
	r, w := io.Pipe()
	s := NewStream(r, io.Discard)
	defer s.Close()

	go func() {
		_, _ = w.Write([]byte("stale"))
	}()
	waitBuffered(t, s, 5)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if b, ok := s.TryReadByte(); ok {
		t.Errorf("TryReadByte() = %q after Flush()", b)
	}
}

func TestStreamWrite(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(bytes.NewReader(nil), &buf)
	if err := s.WriteString("lcd model100\r\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteByte('+'); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "lcd model100\r\n+" {
		t.Errorf("wrote %q", got)
	}
	if !s.Configured() || !s.Ready() {
		t.Error("stream not ready")
	}
}

func TestStreamEOF(t *testing.T) {
	s := NewStream(bytes.NewReader([]byte("x")), io.Discard)
	deadline := time.Now().Add(5 * time.Second)
	for {
		// The channel is closed after the last byte.
		if _, ok := <-s.in; !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reader did not stop")
		}
	}
	if _, ok := s.TryReadByte(); ok {
		t.Error("TryReadByte() after EOF")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestStreamClose(t *testing.T) {
	r, w := io.Pipe()
	s := NewStream(r, io.Discard)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteByte('x'); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteByte() = %v, want %v", err, ErrClosed)
	}
	// The pipe reader was closed.
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("pipe still open")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestStreamCloseBoth(t *testing.T) {
	r, _ := io.Pipe()
	pr, pw := io.Pipe()
	s := NewStream(r, pw)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// The writer was closed too.
	if _, err := pr.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read() on the output pipe = %v, want %v", err, io.EOF)
	}
}

type countingConn struct {
	io.Reader
	io.Writer
	closes int
}

func (c *countingConn) Close() error {
	c.closes++
	return nil
}

func TestStreamCloseOnce(t *testing.T) {
	c := &countingConn{Reader: bytes.NewReader(nil), Writer: io.Discard}
	s := NewStream(c, c)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if c.closes != 1 {
		t.Errorf("closed %d times, want 1", c.closes)
	}
}
