// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostlink

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakePort struct {
	*io.PipeReader
	mu      sync.Mutex
	out     bytes.Buffer
	flushed int
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *fakePort) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed++
	return nil
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

var errNoDevice = errors.New("no such device")

func TestSerialLazyOpen(t *testing.T) {
	var logs bytes.Buffer
	s, err := OpenSerial(&SerialConfig{Device: "/dev/ttyGS0", Logger: log.New(&logs, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := io.Pipe()
	port := &fakePort{PipeReader: r}
	var cfg *serial.Config
	present := false
	s.open = func(c *serial.Config) (Port, error) {
		cfg = c
		if !present {
			return nil, errNoDevice
		}
		return port, nil
	}
	defer s.Close()

	for range 3 {
		if s.Configured() || s.Ready() {
			t.Fatal("configured without a device")
		}
	}
	if n := strings.Count(logs.String(), "no such device"); n != 1 {
		t.Errorf("open failure logged %d times:\n%s", n, logs.String())
	}
	if err := s.WriteByte('x'); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("WriteByte() = %v, want %v", err, ErrNotConfigured)
	}
	if _, ok := s.TryReadByte(); ok {
		t.Error("TryReadByte() without a device")
	}

	present = true
	if !s.Configured() || !s.Ready() {
		t.Fatal("not configured after the device appeared")
	}
	if cfg.Name != "/dev/ttyGS0" || cfg.Baud != 115200 || cfg.ReadTimeout != readTimeout {
		t.Errorf("opened with %+v", cfg)
	}
	if err := s.WriteString("lcd model100\r\n"); err != nil {
		t.Fatal(err)
	}
	if got := port.written(); got != "lcd model100\r\n" {
		t.Errorf("wrote %q", got)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if port.flushed != 1 {
		t.Errorf("port flushed %d times", port.flushed)
	}
}

func TestSerialReadyLine(t *testing.T) {
	dtr := &gpiotest.Pin{N: "DTR", L: gpio.High}
	s, err := OpenSerial(&SerialConfig{Device: "/dev/ttyGS0", Ready: dtr})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := io.Pipe()
	s.open = func(*serial.Config) (Port, error) {
		return &fakePort{PipeReader: r}, nil
	}
	defer s.Close()

	// The line is pulled down until the host drives it.
	if dtr.P != gpio.PullDown {
		t.Errorf("ready line pull = %s", dtr.P)
	}
	if !s.Configured() {
		t.Fatal("not configured")
	}
	if s.Ready() {
		t.Error("ready with DTR low")
	}
	_ = dtr.Out(gpio.High)
	if !s.Ready() {
		t.Error("not ready with DTR high")
	}
}

func TestSerialClose(t *testing.T) {
	s, err := OpenSerial(&SerialConfig{Device: "/dev/ttyGS0"})
	if err != nil {
		t.Fatal(err)
	}
	r, w := io.Pipe()
	s.open = func(*serial.Config) (Port, error) {
		return &fakePort{PipeReader: r}, nil
	}
	if !s.Configured() {
		t.Fatal("not configured")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteByte('x'); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteByte() = %v, want %v", err, ErrClosed)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("port still open")
	}
}

func TestOpenSerialNoDevice(t *testing.T) {
	if _, err := OpenSerial(&SerialConfig{}); err == nil {
		t.Fatal("OpenSerial() without a device succeeded")
	}
}

func TestTimeoutReader(t *testing.T) {
	n, err := timeoutReader{emptyPort{}}.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Errorf("Read() = %d, %v, want 0, nil", n, err)
	}
}

// emptyPort behaves like a tarm port whose read timed out.
type emptyPort struct{}

func (emptyPort) Read([]byte) (int, error)    { return 0, io.EOF }
func (emptyPort) Write(b []byte) (int, error) { return len(b), nil }
func (emptyPort) Close() error                { return nil }
func (emptyPort) Flush() error                { return nil }
