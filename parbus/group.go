// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package parbus

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/pin"
)

// pinGroup is a gpio.Group made of discrete pins. Writes are issued pin by
// pin, so it is only atomic from the point of view of the display chips,
// which sample the bus on the enable falling edge.
type pinGroup struct {
	pins        []gpio.PinOut
	defaultMask gpio.GPIOValue
}

// NewGroup returns a gpio.Group over pins. Bit 0 of a value written to the
// group is pins[0]. Use it on hosts whose GPIO driver has no native line
// set support.
func NewGroup(pins ...gpio.PinOut) gpio.Group {
	return &pinGroup{
		pins:        pins,
		defaultMask: gpio.GPIOValue(1<<len(pins)) - 1,
	}
}

// Pins returns the pins making up the group.
func (pg *pinGroup) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(pg.pins))
	for ix, p := range pg.pins {
		pins[ix] = p
	}
	return pins
}

// ByOffset returns the pin at offset within the group.
func (pg *pinGroup) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(pg.pins) {
		return nil
	}
	return pg.pins[offset]
}

// ByName returns the pin named name, or nil.
func (pg *pinGroup) ByName(name string) pin.Pin {
	for _, p := range pg.pins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// ByNumber returns the pin with the GPIO number, or nil.
func (pg *pinGroup) ByNumber(number int) pin.Pin {
	for _, p := range pg.pins {
		if p.Number() == number {
			return p
		}
	}
	return nil
}

// Out writes value to the pins selected by mask. A zero mask selects every
// pin of the group.
func (pg *pinGroup) Out(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = pg.defaultMask
	} else {
		mask &= pg.defaultMask
	}
	for bit, p := range pg.pins {
		if mask&(1<<bit) == 0 {
			continue
		}
		if err := p.Out(gpio.Level(value&(1<<bit) != 0)); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the level of the pins selected by mask. Every selected pin
// must implement gpio.PinIn.
func (pg *pinGroup) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	if mask == 0 {
		mask = pg.defaultMask
	}
	var result gpio.GPIOValue
	for bit, p := range pg.pins {
		if mask&(1<<bit) == 0 {
			continue
		}
		in, ok := p.(gpio.PinIn)
		if !ok {
			return 0, gpio.ErrGroupFeatureNotImplemented
		}
		if in.Read() {
			result |= 1 << bit
		}
	}
	return result, nil
}

// WaitForEdge is not supported on a group of discrete pins.
func (pg *pinGroup) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt halts every pin in the group.
func (pg *pinGroup) Halt() error {
	for _, p := range pg.pins {
		if err := p.Halt(); err != nil {
			return err
		}
	}
	return nil
}

func (pg *pinGroup) String() string {
	names := make([]string, len(pg.pins))
	for ix, p := range pg.pins {
		names[ix] = p.Name()
	}
	return fmt.Sprintf("Group[%s]", strings.Join(names, " "))
}

var _ gpio.Group = &pinGroup{}
