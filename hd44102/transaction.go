// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102

import (
	"fmt"
	"time"
)

// Mode selects the level of the DI line during a transaction.
type Mode bool

const (
	// Command transactions drive DI low.
	Command Mode = false
	// Data transactions drive DI high.
	Data Mode = true
)

func (m Mode) String() string {
	if m == Data {
		return "Data"
	}
	return "Command"
}

// Delay returns the busy time the chip needs after a transaction of mode m.
func (m Mode) Delay() time.Duration {
	if m == Data {
		return DataDelay
	}
	return CommandDelay
}

// Transaction is one byte written to every addressed chip.
type Transaction struct {
	Payload byte
	Mode    Mode
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s(%#02x)", t.Mode, t.Payload)
}

// Bus timing.
const (
	// SetupHold is how long DI and D0-D7 are held before the enable falling
	// edge.
	SetupHold = time.Microsecond
	// CommandDelay is the rate limit after a command.
	CommandDelay = 5 * time.Millisecond
	// DataDelay is the rate limit after a data write.
	DataDelay = 5 * time.Microsecond
	// PowerSettle is the wait for the contrast circuit and the chip rails
	// before the chips are brought out of reset.
	PowerSettle = 20 * time.Millisecond
)

// Command set.
const (
	DisplayOff byte = 0x38
	DisplayOn  byte = 0x39
	CountUp    byte = 0x3A
	CountDown  byte = 0x3B

	startPage byte = 0x3E
)

// Chip geometry.
const (
	Pages   = 4
	Columns = 50
)

// SetAddress returns the command moving the write address to column of
// page. It panics on an address outside of the chip.
func SetAddress(page, column int) byte {
	if page < 0 || page >= Pages || column < 0 || column >= Columns {
		panic(fmt.Sprintf("hd44102: address (%d, %d) out of range", page, column))
	}
	return byte(page<<6 | column)
}

// SetStartPage returns the command selecting the RAM page shown on the top
// row.
func SetStartPage(page int) byte {
	return byte(page&3)<<6 | startPage
}

// IsStartPage reports whether cmd is a start page command, and its page.
func IsStartPage(cmd byte) (int, bool) {
	return int(cmd >> 6), cmd&0x3F == startPage
}

// Address decodes a set address command.
func Address(cmd byte) (page, column int, ok bool) {
	column = int(cmd & 0x3F)
	return int(cmd >> 6), column, column < Columns
}
