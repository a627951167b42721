// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package parbus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// ErrPinNotFound is returned by Open when a pin name isn't registered.
var ErrPinNotFound = errors.New("parbus: pin not found")

// Wiring maps each logical line to a GPIO pin name as known to gpioreg. An
// empty name leaves the line unwired. LED and ChipSelect are optional, the
// other lines are required.
type Wiring struct {
	LED          string
	Contrast     string
	Reset        string
	MasterSelect string
	Enable       string
	ReadWrite    string
	Mode         string
	ChipSelect   []string
	// Data holds D0 to D7.
	Data [BusWidth]string
}

// DefaultWiring is the harness used on a Raspberry Pi 40 pin header. The
// contrast line is on GPIO18 for its hardware PWM channel. The per chip
// select is a single line shared by all the chips.
var DefaultWiring = Wiring{
	LED:          "GPIO4",
	Contrast:     "GPIO18",
	Reset:        "GPIO24",
	MasterSelect: "GPIO23",
	Enable:       "GPIO22",
	ReadWrite:    "GPIO27",
	Mode:         "GPIO17",
	ChipSelect:   []string{"GPIO25"},
	Data: [BusWidth]string{
		"GPIO5", "GPIO6", "GPIO13", "GPIO19",
		"GPIO26", "GPIO16", "GPIO20", "GPIO21",
	},
}

// Lines resolves the control lines through gpioreg.
func (w *Wiring) Lines() (*Lines, error) {
	var err error
	lookup := func(name string, required bool) gpio.PinIO {
		if err != nil {
			return nil
		}
		if name == "" {
			if required {
				err = fmt.Errorf("%w: required line has no name", ErrPinNotFound)
			}
			return nil
		}
		p := gpioreg.ByName(name)
		if p == nil {
			err = fmt.Errorf("%w: %q", ErrPinNotFound, name)
		}
		return p
	}
	lines := &Lines{
		LED:          lookup(w.LED, false),
		Contrast:     lookup(w.Contrast, true),
		Reset:        lookup(w.Reset, true),
		MasterSelect: lookup(w.MasterSelect, true),
		Enable:       lookup(w.Enable, true),
		ReadWrite:    lookup(w.ReadWrite, true),
		Mode:         lookup(w.Mode, true),
	}
	for _, name := range w.ChipSelect {
		lines.ChipSelect = append(lines.ChipSelect, lookup(name, true))
	}
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// DataGroup resolves D0-D7 through gpioreg and returns them as a group of
// discrete pins.
func (w *Wiring) DataGroup() (gpio.Group, error) {
	pins := make([]gpio.PinOut, BusWidth)
	for ix, name := range w.Data {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: D%d %q", ErrPinNotFound, ix, name)
		}
		pins[ix] = p
	}
	return NewGroup(pins...), nil
}

// Open resolves w and returns the Bus. If data is nil the data lines are
// resolved with DataGroup.
func Open(w *Wiring, data gpio.Group) (*Bus, error) {
	lines, err := w.Lines()
	if err != nil {
		return nil, err
	}
	if data == nil {
		if data, err = w.DataGroup(); err != nil {
			return nil, err
		}
	}
	return New(lines, data)
}
