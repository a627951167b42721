// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102

import (
	"errors"
	"fmt"

	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
)

// ErrSharedSelect is returned by Select when the requested chips can't be
// addressed because they share a select line with chips that were not
// requested.
var ErrSharedSelect = errors.New("hd44102: chips share a select line")

// ChipSelect implements the addressing of the chips on the shared bus.
//
// Each chip has three select inputs. One is tied to ground on every chip.
// CS1 is common to all chips and is driven by the MasterSelect line. CS2 is
// per chip and is driven by a ChipSelect line. A chip takes part in a
// transaction only when both CS1 and CS2 are high.
//
// With no ChipSelect line wired, CS2 is strapped high on the board. With one
// line, it is shared by all the chips. Otherwise chip n uses line n.
type ChipSelect struct {
	bus      Bus
	chips    int
	master   bool
	selected []bool
}

func newChipSelect(bus Bus, chips int) *ChipSelect {
	c := &ChipSelect{bus: bus, chips: chips, selected: make([]bool, chips)}
	// The per chip lines are left to the board strapping until Select is
	// called.
	for ix := range c.selected {
		c.selected[ix] = true
	}
	return c
}

// Chips returns the number of chips on the bus.
func (c *ChipSelect) Chips() int {
	return c.chips
}

// EnableMaster drives the MasterSelect line.
func (c *ChipSelect) EnableMaster(on bool) error {
	if err := c.bus.Write(parbus.MasterSelect, gpio.Level(on)); err != nil {
		return fmt.Errorf("hd44102: master select: %w", err)
	}
	c.master = on
	return nil
}

// Select raises the select line of every chip in chips and lowers the
// others. Chips sharing a line must be selected together.
func (c *ChipSelect) Select(chips ...int) error {
	want := make([]bool, c.chips)
	for _, n := range chips {
		if n < 0 || n >= c.chips {
			return fmt.Errorf("hd44102: select chip %d: out of range [0, %d)", n, c.chips)
		}
		want[n] = true
	}
	lines := c.bus.ChipSelects()
	if lines == 0 {
		for _, w := range want {
			if !w {
				return fmt.Errorf("%w: select lines are strapped high", ErrSharedSelect)
			}
		}
		return nil
	}
	levels := make([]gpio.Level, lines)
	for l := range lines {
		on, off := false, false
		for _, n := range c.chipsOn(l) {
			if want[n] {
				on = true
			} else {
				off = true
			}
		}
		if on && off {
			return fmt.Errorf("%w: %s", ErrSharedSelect, parbus.ChipSelect(l))
		}
		levels[l] = gpio.Level(on)
	}
	for l, level := range levels {
		line := parbus.ChipSelect(l)
		if c.bus.Direction(line) != parbus.Output {
			if err := c.bus.ConfigureDirection(line, parbus.Output); err != nil {
				return fmt.Errorf("hd44102: select: %w", err)
			}
		}
		if err := c.bus.Write(line, level); err != nil {
			return fmt.Errorf("hd44102: select: %w", err)
		}
		for _, n := range c.chipsOn(l) {
			c.selected[n] = bool(level)
		}
	}
	return nil
}

// SelectAll addresses every chip.
func (c *ChipSelect) SelectAll() error {
	all := make([]int, c.chips)
	for ix := range all {
		all[ix] = ix
	}
	return c.Select(all...)
}

// Addressed reports whether the next transaction reaches chip n.
func (c *ChipSelect) Addressed(n int) bool {
	return c.master && n >= 0 && n < c.chips && c.selected[n]
}

// chipsOn returns the chips driven by select line l.
func (c *ChipSelect) chipsOn(l int) []int {
	if c.bus.ChipSelects() == 1 {
		all := make([]int, c.chips)
		for ix := range all {
			all[ix] = ix
		}
		return all
	}
	if l >= c.chips {
		return nil
	}
	return []int{l}
}

func (c *ChipSelect) String() string {
	return fmt.Sprintf("ChipSelect{master: %t, selected: %v}", c.master, c.selected)
}
