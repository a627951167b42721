// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102

import (
	"fmt"

	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
)

// errorHandler keeps the first error of a sequence and turns every later
// step into a no-op.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) configureBus() {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.bus.ConfigureBus(parbus.Output)
}

func (eh *errorHandler) configure(l parbus.Line) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.bus.ConfigureDirection(l, parbus.Output)
}

func (eh *errorHandler) write(l parbus.Line, level gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.bus.Write(l, level)
}

func (eh *errorHandler) contrast(o *Opts) {
	if eh.err != nil {
		return
	}
	eh.d.contrast, eh.err = newContrast(eh.d.bus, o.ContrastFrequency, o.Contrast)
}

func (eh *errorHandler) sleep() {
	if eh.err != nil {
		return
	}
	eh.d.clk.Sleep(PowerSettle)
}

func (eh *errorHandler) enableMaster() {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.cs.EnableMaster(true)
}

func (eh *errorHandler) command(cmd byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.Command(cmd)
}

// idleLines are driven low before anything else. RESET and CS1 are included
// so that the chips stay in reset and unselected until the rails settled.
var idleLines = []parbus.Line{
	parbus.Mode,
	parbus.ReadWrite,
	parbus.Enable,
	parbus.Contrast,
	parbus.Reset,
	parbus.MasterSelect,
}

// init brings the bus and the chips to a known state. The steps run in
// order and each one completes before the next.
func (d *Dev) init(o *Opts) error {
	eh := errorHandler{d: d}

	eh.configureBus()
	for _, l := range idleLines {
		eh.configure(l)
		eh.write(l, gpio.Low)
	}

	eh.contrast(o)
	eh.sleep()

	// Bring the chips online.
	eh.write(parbus.Reset, gpio.High)
	// We always talk to all the chips.
	eh.enableMaster()
	// Writes only, the busy flag is never read back.
	eh.write(parbus.ReadWrite, gpio.Low)

	eh.command(DisplayOn)
	eh.command(CountUp)
	eh.command(SetAddress(0, 0))

	if eh.err != nil {
		return fmt.Errorf("hd44102: init: %w", eh.err)
	}
	d.logger.Printf("hd44102: ready, %d chips, contrast %d", d.cs.Chips(), d.contrast.Level())
	return nil
}
