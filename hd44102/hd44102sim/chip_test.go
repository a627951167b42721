// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102sim

import (
	"testing"

	"github.com/tomn46037/model100/hd44102"
)

func cmd(b byte) hd44102.Transaction {
	return hd44102.Transaction{Payload: b, Mode: hd44102.Command}
}

func data(b byte) hd44102.Transaction {
	return hd44102.Transaction{Payload: b, Mode: hd44102.Data}
}

func TestChipCountDown(t *testing.T) {
	var c Chip
	c.latch(cmd(hd44102.CountDown))
	c.latch(cmd(hd44102.SetAddress(0, 1)))
	c.latch(data(0xA))
	c.latch(data(0xB))
	c.latch(data(0xC))
	if c.RAM(0, 1) != 0xA || c.RAM(0, 0) != 0xB || c.RAM(3, 49) != 0xC {
		t.Errorf("down counting wrote to the wrong place: %s", &c)
	}
	if page, col := c.Address(); page != 3 || col != 48 {
		t.Errorf("Address() = (%d, %d), want (3, 48)", page, col)
	}
}

func TestChipCountUpWrapsPages(t *testing.T) {
	var c Chip
	c.latch(cmd(hd44102.SetAddress(3, 49)))
	c.latch(data(0x1))
	if page, col := c.Address(); page != 0 || col != 0 {
		t.Errorf("Address() = (%d, %d), want (0, 0)", page, col)
	}
}

func TestChipIgnoresInvalidCommands(t *testing.T) {
	var c Chip
	c.latch(cmd(hd44102.SetAddress(2, 7)))
	// Column 60 doesn't exist.
	c.latch(cmd(0x3C))
	c.latch(cmd(2<<6 | 60))
	if page, col := c.Address(); page != 2 || col != 7 {
		t.Errorf("Address() = (%d, %d), want (2, 7)", page, col)
	}
}

func TestChipPixel(t *testing.T) {
	var c Chip
	c.latch(cmd(hd44102.SetAddress(2, 5)))
	c.latch(data(0x80))
	if c.Pixel(5, 23) {
		t.Error("dot shown with the display off")
	}
	c.latch(cmd(hd44102.DisplayOn))
	if !c.Pixel(5, 23) {
		t.Error("dot (5, 23) is clear")
	}
	for _, xy := range [][2]int{{-1, 0}, {50, 0}, {0, 32}, {5, 22}} {
		if c.Pixel(xy[0], xy[1]) {
			t.Errorf("dot %v is set", xy)
		}
	}
	c.latch(cmd(hd44102.SetStartPage(2)))
	if !c.Pixel(5, 7) {
		t.Error("start page 2 not on the top row")
	}
}

func TestChipReset(t *testing.T) {
	var c Chip
	c.latch(cmd(hd44102.DisplayOn))
	c.latch(cmd(hd44102.CountDown))
	c.latch(cmd(hd44102.SetStartPage(1)))
	c.latch(data(0x42))
	c.reset()
	page, col := c.Address()
	if c.On() || c.CountsDown() || c.StartPage() != 0 || page != 0 || col != 0 {
		t.Errorf("reset() left %s", &c)
	}
	if c.RAM(0, 0) != 0x42 {
		t.Error("reset() cleared the RAM")
	}
}
