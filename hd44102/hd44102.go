// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44102 drives a bank of Hitachi HD44102 dot matrix column drivers
// sharing one 8 bit parallel bus, such as the LCD of the TRS-80 Model 100.
//
// Every transaction is sent to all the addressed chips at once. DI selects
// data or command, D0-D7 carry the byte and the chips latch it on the falling
// edge of EN. After the falling edge the chips are busy for a while; Execute
// blocks for that time so that transactions can never overlap.
package hd44102

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Bus is the subset of parbus.Bus used by the driver.
type Bus interface {
	ConfigureBus(dir parbus.Direction) error
	ConfigureDirection(l parbus.Line, dir parbus.Direction) error
	Direction(l parbus.Line) parbus.Direction
	Write(l parbus.Line, level gpio.Level) error
	WriteBus(v byte) error
	PWM(l parbus.Line, duty gpio.Duty, f physic.Frequency) error
	ChipSelects() int
	String() string
}

// Sleeper blocks the caller for d. Implementations must not return early:
// the chips are undefined if a transaction starts during their busy time.
// clockwork.Clock implements it.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Opts holds the configuration of the display.
type Opts struct {
	// Chips is the number of HD44102 on the bus.
	Chips int
	// Contrast is the initial contrast level.
	Contrast ContrastLevel
	// ContrastFrequency is the PWM frequency of the contrast generator.
	ContrastFrequency physic.Frequency
	// Clock is used for every delay. Defaults to the real clock.
	Clock Sleeper
	// Logger receives debug output. Defaults to discarding it.
	Logger *log.Logger
}

// DefaultOpts matches the Model 100 LCD: ten chips, five across and two
// down.
var DefaultOpts = Opts{
	Chips:             10,
	Contrast:          20,
	ContrastFrequency: DefaultContrastFrequency,
}

// Dev is a bank of HD44102 ready to receive transactions.
type Dev struct {
	bus      Bus
	clk      Sleeper
	logger   *log.Logger
	cs       *ChipSelect
	contrast *Contrast
	halted   bool
}

// ErrHalted is returned by Execute after Halt.
var ErrHalted = errors.New("hd44102: halted")

// New runs the startup sequence on bus and returns the display, ready for
// use. opts may be nil to use DefaultOpts.
func New(bus Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Chips <= 0 {
		o.Chips = DefaultOpts.Chips
	}
	if o.ContrastFrequency == 0 {
		o.ContrastFrequency = DefaultContrastFrequency
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	if n := bus.ChipSelects(); n > 1 && n != o.Chips {
		return nil, fmt.Errorf("hd44102: %d select lines for %d chips", n, o.Chips)
	}
	d := &Dev{
		bus:    bus,
		clk:    o.Clock,
		logger: o.Logger,
		cs:     newChipSelect(bus, o.Chips),
	}
	if err := d.init(&o); err != nil {
		return nil, err
	}
	return d, nil
}

// Execute runs one transaction on the bus:
//
//  1. DI reflects the mode,
//  2. EN goes high,
//  3. the payload is put on D0-D7,
//  4. the bus is held for SetupHold,
//  5. EN goes low, which is when the chips latch the byte,
//  6. the chips' busy time for the mode is waited out.
//
// Execute returns after step 6. The delays can't be interrupted.
func (d *Dev) Execute(t Transaction) error {
	if d.halted {
		return ErrHalted
	}
	if err := d.bus.Write(parbus.Mode, gpio.Level(t.Mode)); err != nil {
		return fmt.Errorf("hd44102: %s: %w", t, err)
	}
	if err := d.bus.Write(parbus.Enable, gpio.High); err != nil {
		// The pin may have moved anyway; release it and wait out the busy
		// time before reporting.
		_ = d.bus.Write(parbus.Enable, gpio.Low)
		d.clk.Sleep(t.Mode.Delay())
		return fmt.Errorf("hd44102: %s: %w", t, err)
	}
	err := d.bus.WriteBus(t.Payload)
	d.clk.Sleep(SetupHold)
	// EN is always released, the chips may latch garbage if the bus write
	// failed but they must not be left selected.
	if e := d.bus.Write(parbus.Enable, gpio.Low); err == nil {
		err = e
	}
	d.clk.Sleep(t.Mode.Delay())
	if err != nil {
		return fmt.Errorf("hd44102: %s: %w", t, err)
	}
	return nil
}

// WriteByte sends b as display data.
func (d *Dev) WriteByte(b byte) error {
	return d.Execute(Transaction{Payload: b, Mode: Data})
}

// Command sends cmd as a command.
func (d *Dev) Command(cmd byte) error {
	return d.Execute(Transaction{Payload: cmd, Mode: Command})
}

// Write sends p as display data, one transaction per byte.
func (d *Dev) Write(p []byte) (int, error) {
	for n, b := range p {
		if err := d.WriteByte(b); err != nil {
			return n, err
		}
	}
	return len(p), nil
}

// Contrast returns the contrast generator.
func (d *Dev) Contrast() *Contrast {
	return d.contrast
}

// ChipSelect returns the chip addressing.
func (d *Dev) ChipSelect() *ChipSelect {
	return d.cs
}

// Halt turns the display off, holds the chips in reset, deselects them and
// stops the contrast generator. The Dev can't be used afterward.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	errs := []error{d.Command(DisplayOff)}
	d.halted = true
	errs = append(errs,
		d.bus.Write(parbus.Reset, gpio.Low),
		d.cs.EnableMaster(false),
		d.bus.PWM(parbus.Contrast, 0, d.contrast.Frequency()),
		d.bus.Write(parbus.Contrast, gpio.Low),
	)
	return errors.Join(errs...)
}

func (d *Dev) String() string {
	return fmt.Sprintf("HD44102{chips: %d, bus: %s}", d.cs.Chips(), d.bus)
}

var _ conn.Resource = &Dev{}
var _ io.ByteWriter = &Dev{}
var _ io.Writer = &Dev{}
