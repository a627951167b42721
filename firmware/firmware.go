// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package firmware is the control loop of the LCD controller.
//
// After a handshake with the host, the loop echoes every byte received from
// the host, raises the contrast on '+', and writes an incrementing byte to
// the display on every tick. Everything runs on the caller's goroutine; the
// only blocking points are the bus delays, the handshake waits and the host
// settle time.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/hostlink"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
)

// Clock is the time source of the loop. clockwork.Clock implements it.
type Clock interface {
	Sleep(d time.Duration)
	NewTicker(d time.Duration) clockwork.Ticker
}

// Contrast is the contrast generator, see hd44102.Contrast.
type Contrast interface {
	Increase(delta hd44102.ContrastLevel) error
}

// Lines gives access to the status LED, see parbus.Bus.
type Lines interface {
	Wired(l parbus.Line) bool
	ConfigureDirection(l parbus.Line, dir parbus.Direction) error
	Write(l parbus.Line, level gpio.Level) error
}

// Opts holds the behavior of the loop.
type Opts struct {
	// TickPeriod is the interval between display writes.
	TickPeriod time.Duration
	// PollInterval is the interval between checks while waiting for the
	// host.
	PollInterval time.Duration
	// HostSettle is the wait between the host transport coming up and
	// checking for the host ready signal.
	HostSettle time.Duration
	// Greeting is sent once the host is ready.
	Greeting string
	// ContrastStep is added to the contrast on each '+'.
	ContrastStep hd44102.ContrastLevel
	// Clock defaults to the real clock.
	Clock Clock
	// Logger defaults to discarding.
	Logger *log.Logger
}

// DefaultOpts is a 125Hz tick.
var DefaultOpts = Opts{
	TickPeriod:   8 * time.Millisecond,
	PollInterval: time.Millisecond,
	HostSettle:   time.Second,
	Greeting:     "lcd model100\r\n",
	ContrastStep: 8,
}

// ErrNotStarted is returned by Step before Start or after Stop.
var ErrNotStarted = errors.New("firmware: loop not started")

// Loop is the control loop. It is not safe for concurrent use.
type Loop struct {
	lcd      io.ByteWriter
	contrast Contrast
	lines    Lines
	link     hostlink.Link
	opts     Opts
	logger   *log.Logger

	ticker clockwork.Ticker
	cursor byte
}

// New returns a Loop writing to lcd. Nothing happens until Start.
func New(lcd io.ByteWriter, contrast Contrast, lines Lines, link hostlink.Link, opts *Opts) *Loop {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.TickPeriod <= 0 {
		o.TickPeriod = DefaultOpts.TickPeriod
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOpts.PollInterval
	}
	if o.ContrastStep == 0 {
		o.ContrastStep = DefaultOpts.ContrastStep
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return &Loop{
		lcd:      lcd,
		contrast: contrast,
		lines:    lines,
		link:     link,
		opts:     o,
		logger:   o.Logger,
	}
}

// Start runs the host handshake:
//
//  1. the LED goes on and the tick starts,
//  2. wait for the host transport,
//  3. wait HostSettle,
//  4. wait for the host ready signal,
//  5. drop whatever the host sent so far,
//  6. the LED goes off and the greeting is sent.
//
// The waits have no timeout; Start returns early only when ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	if l.lines.Wired(parbus.LED) {
		if err := l.lines.ConfigureDirection(parbus.LED, parbus.Output); err != nil {
			return fmt.Errorf("firmware: led: %w", err)
		}
	}
	if err := l.led(gpio.High); err != nil {
		return err
	}
	l.ticker = l.opts.Clock.NewTicker(l.opts.TickPeriod)

	if err := l.waitFor(ctx, l.link.Configured); err != nil {
		return err
	}
	l.logger.Printf("firmware: host link up, settling for %s", l.opts.HostSettle)
	l.opts.Clock.Sleep(l.opts.HostSettle)
	if err := l.waitFor(ctx, l.link.Ready); err != nil {
		return err
	}
	if err := l.link.Flush(); err != nil {
		l.logger.Printf("firmware: flush: %v", err)
	}
	if err := l.led(gpio.Low); err != nil {
		return err
	}
	if err := l.link.WriteString(l.opts.Greeting); err != nil {
		l.logger.Printf("firmware: greeting: %v", err)
	}
	l.logger.Printf("firmware: host ready")
	return nil
}

// Step runs one iteration of the loop. It handles at most one byte from the
// host, then writes the cursor to the display if a tick elapsed. It returns
// whether a tick was handled.
//
// Errors from the display are returned; the loop can't recover from a
// broken line. Echo errors are logged and ignored.
func (l *Loop) Step() (bool, error) {
	if l.ticker == nil {
		return false, ErrNotStarted
	}
	if b, ok := l.link.TryReadByte(); ok {
		if err := l.link.WriteByte(b); err != nil {
			l.logger.Printf("firmware: echo: %v", err)
		}
		if b == '+' {
			if err := l.contrast.Increase(l.opts.ContrastStep); err != nil {
				return false, fmt.Errorf("firmware: %w", err)
			}
		}
	}
	select {
	case <-l.ticker.Chan():
	default:
		return false, nil
	}
	if err := l.lcd.WriteByte(l.cursor); err != nil {
		return true, fmt.Errorf("firmware: tick: %w", err)
	}
	l.cursor++
	return true, nil
}

// Run calls Start then Step until ctx is done or Step fails. ctx is checked
// between iterations only.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer l.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ticked, err := l.Step()
		if err != nil {
			return err
		}
		if !ticked {
			runtime.Gosched()
		}
	}
}

// Cursor returns the next byte written to the display.
func (l *Loop) Cursor() byte {
	return l.cursor
}

// Stop stops the tick.
func (l *Loop) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
}

func (l *Loop) led(level gpio.Level) error {
	if !l.lines.Wired(parbus.LED) {
		return nil
	}
	if err := l.lines.Write(parbus.LED, level); err != nil {
		return fmt.Errorf("firmware: led: %w", err)
	}
	return nil
}

func (l *Loop) waitFor(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.opts.Clock.Sleep(l.opts.PollInterval)
	}
	return nil
}
