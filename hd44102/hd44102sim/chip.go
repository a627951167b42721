// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102sim

import (
	"fmt"

	"github.com/tomn46037/model100/hd44102"
)

// Height is the number of pixel rows of one chip.
const Height = hd44102.Pages * 8

// Chip is the state of one emulated HD44102.
//
// The display RAM is organized as 4 pages of 50 bytes. Each byte is a column
// of 8 pixels, bit 0 at the top.
type Chip struct {
	ram   [hd44102.Pages][hd44102.Columns]byte
	on    bool
	down  bool
	page  int
	col   int
	start int
}

// reset is the effect of the RESET line being low. The RAM is kept.
func (c *Chip) reset() {
	c.on = false
	c.down = false
	c.page = 0
	c.col = 0
	c.start = 0
}

// latch applies one transaction.
func (c *Chip) latch(t hd44102.Transaction) {
	if t.Mode == hd44102.Data {
		c.ram[c.page][c.col] = t.Payload
		c.advance()
		return
	}
	switch t.Payload {
	case hd44102.DisplayOff:
		c.on = false
		return
	case hd44102.DisplayOn:
		c.on = true
		return
	case hd44102.CountUp:
		c.down = false
		return
	case hd44102.CountDown:
		c.down = true
		return
	}
	if page, ok := hd44102.IsStartPage(t.Payload); ok {
		c.start = page
		return
	}
	if page, col, ok := hd44102.Address(t.Payload); ok {
		c.page = page
		c.col = col
	}
	// Anything else is not a valid command and is ignored by the chip.
}

// advance moves the address counter after a data write. The column wraps
// into the next (or previous) page.
func (c *Chip) advance() {
	if c.down {
		if c.col--; c.col < 0 {
			c.col = hd44102.Columns - 1
			c.page = (c.page + hd44102.Pages - 1) % hd44102.Pages
		}
		return
	}
	if c.col++; c.col == hd44102.Columns {
		c.col = 0
		c.page = (c.page + 1) % hd44102.Pages
	}
}

// On reports whether the display is on.
func (c *Chip) On() bool {
	return c.on
}

// CountsDown reports whether the address counter decrements.
func (c *Chip) CountsDown() bool {
	return c.down
}

// Address returns the next write address.
func (c *Chip) Address() (page, column int) {
	return c.page, c.col
}

// StartPage returns the page shown on the top row.
func (c *Chip) StartPage() int {
	return c.start
}

// RAM returns the byte at column of page.
func (c *Chip) RAM(page, column int) byte {
	return c.ram[page][column]
}

// Pixel reports whether the dot at column x, row y is dark. It takes the
// start page and the display on/off state into account.
func (c *Chip) Pixel(x, y int) bool {
	if !c.on || x < 0 || x >= hd44102.Columns || y < 0 || y >= Height {
		return false
	}
	page := (y/8 + c.start) % hd44102.Pages
	return c.ram[page][x]&(1<<(y%8)) != 0
}

func (c *Chip) String() string {
	return fmt.Sprintf("Chip{on: %t, down: %t, address: (%d, %d), start: %d}", c.on, c.down, c.page, c.col, c.start)
}
