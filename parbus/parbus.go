// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package parbus gives typed access to the control lines and the 8 bit
// parallel data bus shared by a set of display controller chips.
//
// Every line has a logical name (see Line) and a direction. A line must be
// configured as an output before it is written; writes to a line that was
// not configured fail with ErrNotOutput instead of having an undefined effect
// on the hardware.
package parbus

import (
	"errors"
	"fmt"
	"strings"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Line is the logical name of a control line.
type Line int

// The fixed set of control lines. Per chip select lines follow Mode and are
// obtained with ChipSelect.
const (
	LED Line = iota
	Contrast
	Reset
	MasterSelect
	Enable
	ReadWrite
	Mode

	chipSelectBase
)

// BusWidth is the number of data lines.
const BusWidth = 8

const busMask = gpio.GPIOValue(1<<BusWidth) - 1

var lineNames = [...]string{
	LED:          "LED",
	Contrast:     "V2",
	Reset:        "RESET",
	MasterSelect: "CS1",
	Enable:       "EN",
	ReadWrite:    "RW",
	Mode:         "DI",
}

// ChipSelect returns the per chip select line n.
func ChipSelect(n int) Line {
	return chipSelectBase + Line(n)
}

// IsChipSelect reports whether l is a per chip select line, and which one.
func (l Line) IsChipSelect() (int, bool) {
	if l < chipSelectBase {
		return 0, false
	}
	return int(l - chipSelectBase), true
}

func (l Line) String() string {
	if n, ok := l.IsChipSelect(); ok {
		return fmt.Sprintf("CS2_%d", n)
	}
	if l < 0 || int(l) >= len(lineNames) {
		return fmt.Sprintf("Line(%d)", int(l))
	}
	return lineNames[l]
}

// Direction of a line or of the data bus.
type Direction uint8

const (
	// Unconfigured is the state of every line before ConfigureDirection.
	Unconfigured Direction = iota
	Input
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "Input"
	case Output:
		return "Output"
	default:
		return "Unconfigured"
	}
}

var (
	// ErrNotOutput is returned when writing a line that is not configured
	// as an output.
	ErrNotOutput = errors.New("parbus: line not configured for output")
	// ErrNotInput is returned when reading a line that is not configured
	// as an input.
	ErrNotInput = errors.New("parbus: line not configured for input")
	// ErrNotWired is returned when accessing a line that has no pin.
	ErrNotWired = errors.New("parbus: line not wired")
	// ErrBusWidth is returned when the data group has fewer than 8 pins.
	ErrBusWidth = errors.New("parbus: data bus needs 8 pins")
)

// Lines holds the pins backing each control line. A nil pin means the line
// is not under software control (tied on the board).
type Lines struct {
	LED          gpio.PinIO
	Contrast     gpio.PinIO
	Reset        gpio.PinIO
	MasterSelect gpio.PinIO
	Enable       gpio.PinIO
	ReadWrite    gpio.PinIO
	Mode         gpio.PinIO
	// ChipSelect holds the per chip select lines. A single entry means one
	// line shared by every chip.
	ChipSelect []gpio.PinIO
}

// Bus owns the control lines and the data bus. It is not safe for
// concurrent use; the display driver is its only user.
type Bus struct {
	pins   []gpio.PinIO
	dirs   []Direction
	data   gpio.Group
	busDir Direction
}

// New returns a Bus over the given lines and data group. The first 8 pins of
// data are D0 to D7. No pin is touched until it is configured.
func New(lines *Lines, data gpio.Group) (*Bus, error) {
	if data == nil || len(data.Pins()) < BusWidth {
		return nil, ErrBusWidth
	}
	pins := []gpio.PinIO{
		LED:          lines.LED,
		Contrast:     lines.Contrast,
		Reset:        lines.Reset,
		MasterSelect: lines.MasterSelect,
		Enable:       lines.Enable,
		ReadWrite:    lines.ReadWrite,
		Mode:         lines.Mode,
	}
	pins = append(pins, lines.ChipSelect...)
	return &Bus{
		pins: pins,
		dirs: make([]Direction, len(pins)),
		data: data,
	}, nil
}

// Wired reports whether l has a pin.
func (b *Bus) Wired(l Line) bool {
	return l >= 0 && int(l) < len(b.pins) && b.pins[l] != nil
}

// ChipSelects returns the number of per chip select lines.
func (b *Bus) ChipSelects() int {
	return len(b.pins) - int(chipSelectBase)
}

// Direction returns the configured direction of l.
func (b *Bus) Direction(l Line) Direction {
	if !b.Wired(l) {
		return Unconfigured
	}
	return b.dirs[l]
}

// ConfigureDirection sets the direction of l. Outputs start low.
func (b *Bus) ConfigureDirection(l Line, dir Direction) error {
	p, err := b.pin(l)
	if err != nil {
		return err
	}
	switch dir {
	case Output:
		err = p.Out(gpio.Low)
	case Input:
		err = p.In(gpio.PullNoChange, gpio.NoEdge)
	default:
		return fmt.Errorf("parbus: %s: invalid direction %s", l, dir)
	}
	if err != nil {
		return fmt.Errorf("parbus: configure %s: %w", l, err)
	}
	b.dirs[l] = dir
	return nil
}

// Write sets the level of an output line.
func (b *Bus) Write(l Line, level gpio.Level) error {
	p, err := b.output(l)
	if err != nil {
		return err
	}
	if err = p.Out(level); err != nil {
		return fmt.Errorf("parbus: write %s: %w", l, err)
	}
	return nil
}

// Read returns the level of an input line.
func (b *Bus) Read(l Line) (gpio.Level, error) {
	p, err := b.pin(l)
	if err != nil {
		return gpio.Low, err
	}
	if b.dirs[l] != Input {
		return gpio.Low, fmt.Errorf("%w: %s", ErrNotInput, l)
	}
	return p.Read(), nil
}

// PWM starts a pulse train on an output line.
func (b *Bus) PWM(l Line, duty gpio.Duty, f physic.Frequency) error {
	p, err := b.output(l)
	if err != nil {
		return err
	}
	if err = p.PWM(duty, f); err != nil {
		return fmt.Errorf("parbus: pwm %s: %w", l, err)
	}
	return nil
}

// ConfigureBus sets the direction of the data bus. An output bus is cleared
// to zero.
func (b *Bus) ConfigureBus(dir Direction) error {
	switch dir {
	case Output:
		if err := b.data.Out(0, busMask); err != nil {
			return fmt.Errorf("parbus: configure bus: %w", err)
		}
	case Input:
		for _, p := range b.data.Pins()[:BusWidth] {
			in, ok := p.(gpio.PinIn)
			if !ok {
				return fmt.Errorf("parbus: configure bus: %s: %w", p, gpio.ErrGroupFeatureNotImplemented)
			}
			if err := in.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
				return fmt.Errorf("parbus: configure bus: %w", err)
			}
		}
	default:
		return fmt.Errorf("parbus: bus: invalid direction %s", dir)
	}
	b.busDir = dir
	return nil
}

// WriteBus writes v to D0-D7 in a single group operation.
func (b *Bus) WriteBus(v byte) error {
	if b.busDir != Output {
		return fmt.Errorf("%w: data bus", ErrNotOutput)
	}
	if err := b.data.Out(gpio.GPIOValue(v), busMask); err != nil {
		return fmt.Errorf("parbus: write bus: %w", err)
	}
	return nil
}

// Halt returns every line and the bus to the unconfigured state and halts
// the underlying pins.
func (b *Bus) Halt() error {
	var errs []error
	for ix, p := range b.pins {
		if p == nil {
			continue
		}
		errs = append(errs, p.Halt())
		b.dirs[ix] = Unconfigured
	}
	errs = append(errs, b.data.Halt())
	b.busDir = Unconfigured
	return errors.Join(errs...)
}

func (b *Bus) String() string {
	var sb strings.Builder
	sb.WriteString("parbus{")
	for ix, p := range b.pins {
		if p == nil {
			continue
		}
		if sb.Len() > len("parbus{") {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", Line(ix), p.Name())
	}
	fmt.Fprintf(&sb, ", data: %s}", b.data)
	return sb.String()
}

func (b *Bus) pin(l Line) (gpio.PinIO, error) {
	if !b.Wired(l) {
		return nil, fmt.Errorf("%w: %s", ErrNotWired, l)
	}
	return b.pins[l], nil
}

func (b *Bus) output(l Line) (gpio.PinIO, error) {
	p, err := b.pin(l)
	if err != nil {
		return nil, err
	}
	if b.dirs[l] != Output {
		return nil, fmt.Errorf("%w: %s", ErrNotOutput, l)
	}
	return p, nil
}

var _ conn.Resource = &Bus{}
