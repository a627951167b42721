// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102

import (
	"fmt"

	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ContrastLevel is the value of the 8 bit duty cycle register driving V2.
// Arithmetic on it wraps at ContrastRange.
type ContrastLevel uint8

// ContrastRange is the number of counts in one PWM period. The register and
// the period are both 8 bits wide, so every level maps to a distinct duty
// cycle between 0 and 255/256.
const ContrastRange = 256

// DefaultContrastFrequency is a 16MHz undivided clock over a 256 count
// period.
const DefaultContrastFrequency = 62500 * physic.Hertz

// Duty converts a register value to the PWM duty cycle it produces: the
// output is set at the top of the period and cleared on match.
func (l ContrastLevel) Duty() gpio.Duty {
	return gpio.DutyMax / ContrastRange * gpio.Duty(l)
}

// Contrast drives the contrast voltage with a free running PWM on the V2
// line. The period is fixed when the Contrast is created; Set only changes
// the duty cycle.
type Contrast struct {
	bus   Bus
	freq  physic.Frequency
	level ContrastLevel
}

// newContrast starts the generator at level. The V2 line must already be an
// output.
func newContrast(bus Bus, freq physic.Frequency, level ContrastLevel) (*Contrast, error) {
	c := &Contrast{bus: bus, freq: freq}
	return c, c.Set(level)
}

// Set writes l to the duty cycle register.
func (c *Contrast) Set(l ContrastLevel) error {
	if err := c.bus.PWM(parbus.Contrast, l.Duty(), c.freq); err != nil {
		return fmt.Errorf("hd44102: contrast %d: %w", l, err)
	}
	c.level = l
	return nil
}

// Increase adds delta to the level, wrapping at ContrastRange.
func (c *Contrast) Increase(delta ContrastLevel) error {
	return c.Set(c.level + delta)
}

// Level returns the last level written.
func (c *Contrast) Level() ContrastLevel {
	return c.level
}

// Frequency returns the PWM frequency chosen at init.
func (c *Contrast) Frequency() physic.Frequency {
	return c.freq
}

func (c *Contrast) String() string {
	return fmt.Sprintf("Contrast{%d/%d, %s}", c.level, ContrastRange, c.freq)
}
