// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostlink

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
)

// Port is an opened serial port.
type Port interface {
	io.ReadWriteCloser
	// Flush discards the data not yet transmitted or read.
	Flush() error
}

// SerialConfig holds the configuration of a serial host link.
type SerialConfig struct {
	// Device is the tty, e.g. "/dev/ttyGS0" for a USB gadget.
	Device string
	// Baud is ignored by USB CDC ACM ports.
	Baud int
	// Ready is the optional line reporting DTR. When nil the host is
	// considered ready as soon as the port is open.
	Ready gpio.PinIn
	// Logger receives the open failures. Defaults to discarding them.
	Logger *log.Logger
}

// readTimeout wakes the background reader up so it notices Close.
const readTimeout = 100 * time.Millisecond

// Serial is a Link over a serial port. The port is opened lazily by
// Configured, so a device that shows up late is picked up.
type Serial struct {
	cfg    SerialConfig
	logger *log.Logger
	open   func(*serial.Config) (Port, error)

	mu      sync.Mutex
	port    Port
	stream  *Stream
	lastErr string
	closed  bool
}

// OpenSerial returns a Serial for cfg. The port itself is not opened yet.
func OpenSerial(cfg *SerialConfig) (*Serial, error) {
	if cfg.Device == "" {
		return nil, errors.New("hostlink: no serial device")
	}
	if cfg.Ready != nil {
		if err := cfg.Ready.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("hostlink: ready line %s: %w", cfg.Ready, err)
		}
	}
	s := &Serial{cfg: *cfg, logger: cfg.Logger, open: openPort}
	if s.cfg.Baud == 0 {
		s.cfg.Baud = 115200
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s, nil
}

func openPort(c *serial.Config) (Port, error) {
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Configured implements Link. It tries to open the port if it isn't.
func (s *Serial) Configured() bool {
	return s.link() != nil
}

// Ready implements Link.
func (s *Serial) Ready() bool {
	if s.link() == nil {
		return false
	}
	return s.cfg.Ready == nil || s.cfg.Ready.Read() == gpio.High
}

// TryReadByte implements Link.
func (s *Serial) TryReadByte() (byte, bool) {
	l := s.current()
	if l == nil {
		return 0, false
	}
	return l.TryReadByte()
}

// WriteByte implements Link.
func (s *Serial) WriteByte(b byte) error {
	l, err := s.writable()
	if err != nil {
		return err
	}
	return l.WriteByte(b)
}

// WriteString implements Link.
func (s *Serial) WriteString(str string) error {
	l, err := s.writable()
	if err != nil {
		return err
	}
	return l.WriteString(str)
}

// Flush implements Link. Both the port and the received bytes not yet
// polled are flushed.
func (s *Serial) Flush() error {
	s.mu.Lock()
	port, l := s.port, s.stream
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	err := port.Flush()
	if e := l.Flush(); err == nil {
		err = e
	}
	return err
}

// Close implements Link.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *Serial) String() string {
	return fmt.Sprintf("Serial{%s}", s.cfg.Device)
}

func (s *Serial) current() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *Serial) writable() (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.stream == nil {
		return nil, ErrNotConfigured
	}
	return s.stream, nil
}

// link returns the stream, opening the port on first success.
func (s *Serial) link() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil || s.closed {
		return s.stream
	}
	p, err := s.open(&serial.Config{Name: s.cfg.Device, Baud: s.cfg.Baud, ReadTimeout: readTimeout})
	if err != nil {
		// Polled every millisecond; only log when the reason changes.
		if msg := err.Error(); msg != s.lastErr {
			s.logger.Printf("hostlink: open %s: %v", s.cfg.Device, err)
			s.lastErr = msg
		}
		return nil
	}
	s.logger.Printf("hostlink: %s opened at %d baud", s.cfg.Device, s.cfg.Baud)
	s.port = p
	// The reader side closes the port.
	s.stream = NewStream(timeoutReader{p}, struct{ io.Writer }{p})
	return s.stream
}

// timeoutReader turns the empty reads of a port with a read timeout into
// (0, nil), and closes with the port.
type timeoutReader struct {
	Port
}

func (t timeoutReader) Read(b []byte) (int, error) {
	n, err := t.Port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

var _ Link = &Serial{}
var _ Port = &serial.Port{}
