// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/tomn46037/model100/firmware"
	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/hd44102/hd44102sim"
	"github.com/tomn46037/model100/hostlink"
	"github.com/tomn46037/model100/parbus"
)

// refreshPeriod is the terminal frame rate in -sim mode.
const refreshPeriod = 100 * time.Millisecond

// runSim runs the firmware against an emulated panel. The picture goes to
// stderr so that stdout only carries the host link.
func runSim(ctx context.Context, cfg *config) error {
	panel := hd44102sim.New(&hd44102sim.Opts{
		Chips:       cfg.chips,
		Across:      hd44102sim.DefaultOpts.Across,
		SelectLines: len(parbus.DefaultWiring.ChipSelect),
	})
	lines := panel.Lines()
	if cfg.trace {
		traceLines(lines)
	}
	bus, err := parbus.New(lines, panel.Data())
	if err != nil {
		return err
	}
	lcd, err := hd44102.New(bus, &cfg.lcdOpts)
	if err != nil {
		return err
	}

	term := hd44102sim.NewTerminal(colorable.NewColorableStderr(), nil)
	done := make(chan struct{})
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		t := time.NewTicker(refreshPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := term.Draw(panel.Frame()); err != nil {
					cfg.logger.Printf("terminal: %v", err)
				}
			}
		}
	}()

	link := hostlink.NewStream(os.Stdin, os.Stdout)
	err = firmware.New(lcd, lcd.Contrast(), bus, link, &cfg.fwOpts).Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	close(done)
	<-refreshed

	_ = term.Draw(panel.Frame())
	_ = term.Halt()
	for _, v := range panel.Violations() {
		cfg.logger.Printf("bus violation %s", v)
	}
	if cfg.png != "" {
		if perr := panel.SavePNG(cfg.png); err == nil {
			err = perr
		}
	}
	if herr := lcd.Halt(); err == nil {
		err = herr
	}
	_ = link.Close()
	return err
}
