// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102_test

import (
	"log"

	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/gpioioctl"
)

// This example drives the Model 100 LCD from a Raspberry Pi. The data lines
// are requested as one line set so that D0-D7 change in a single ioctl.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	w := parbus.DefaultWiring
	var data gpio.Group
	data, err := gpioioctl.Chips[0].LineSet(gpioioctl.LineOutput, gpio.NoEdge, gpio.PullNoChange, w.Data[:]...)
	if err != nil {
		log.Fatal(err)
	}
	bus, err := parbus.Open(&w, data)
	if err != nil {
		log.Fatal(err)
	}
	lcd, err := hd44102.New(bus, &hd44102.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}
	defer lcd.Halt()

	// Draw a checkerboard on the first page of every chip.
	if err = lcd.Command(hd44102.SetAddress(0, 0)); err != nil {
		log.Fatal(err)
	}
	for column := range hd44102.Columns {
		if err = lcd.WriteByte(0x55 << (column & 1)); err != nil {
			log.Fatal(err)
		}
	}
	// Darker.
	if err = lcd.Contrast().Increase(8); err != nil {
		log.Fatal(err)
	}
}
