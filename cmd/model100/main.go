// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// model100 drives the LCD of a TRS-80 Model 100 from a single board computer
// and talks to a host over a serial link.
//
// Every byte received from the host is echoed back. '+' also makes the
// display darker. A byte counter is written to the display at 125Hz.
//
// With -sim, the LCD is emulated on the terminal and the host link is
// stdin/stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomn46037/model100/firmware"
	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/hostlink"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/gpioioctl"
)

type config struct {
	port    string
	baud    int
	ready   string
	chips   int
	png     string
	trace   bool
	logger  *log.Logger
	fwOpts  firmware.Opts
	lcdOpts hd44102.Opts
}

func mainImpl() error {
	var cfg config
	flag.StringVar(&cfg.port, "port", "/dev/ttyGS0", "serial device of the host link")
	flag.IntVar(&cfg.baud, "baud", 115200, "baud rate of the host link")
	flag.StringVar(&cfg.ready, "ready", "", "GPIO reporting the host DTR; when empty the host is ready once the port opens")
	flag.IntVar(&cfg.chips, "chips", hd44102.DefaultOpts.Chips, "number of HD44102 on the bus")
	sim := flag.Bool("sim", false, "emulate the LCD on the terminal; the host link is stdin/stdout")
	flag.StringVar(&cfg.png, "png", "", "with -sim, save a snapshot of the LCD to this file on exit")
	flag.BoolVar(&cfg.trace, "trace", false, "log every control line change")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg.logger = log.New(io.Discard, "", 0)
	if *verbose {
		cfg.logger = log.New(os.Stderr, "", log.Lmicroseconds)
	}
	cfg.lcdOpts = hd44102.DefaultOpts
	cfg.lcdOpts.Chips = cfg.chips
	cfg.lcdOpts.Logger = cfg.logger
	cfg.fwOpts = firmware.DefaultOpts
	cfg.fwOpts.Logger = cfg.logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *sim {
		err = runSim(ctx, &cfg)
	} else {
		err = runHost(ctx, &cfg)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runHost drives the real LCD wired as parbus.DefaultWiring.
func runHost(ctx context.Context, cfg *config) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	w := parbus.DefaultWiring
	lines, err := w.Lines()
	if err != nil {
		return err
	}
	data, err := dataGroup(&w, cfg.logger)
	if err != nil {
		return err
	}
	if cfg.trace {
		traceLines(lines)
	}
	bus, err := parbus.New(lines, data)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Halt(); err != nil {
			cfg.logger.Printf("halt %s: %v", bus, err)
		}
	}()
	lcd, err := hd44102.New(bus, &cfg.lcdOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := lcd.Halt(); err != nil {
			cfg.logger.Printf("halt %s: %v", lcd, err)
		}
	}()

	var ready gpio.PinIn
	if cfg.ready != "" {
		p := gpioreg.ByName(cfg.ready)
		if p == nil {
			return fmt.Errorf("%w: %q", parbus.ErrPinNotFound, cfg.ready)
		}
		ready = p
	}
	link, err := hostlink.OpenSerial(&hostlink.SerialConfig{Device: cfg.port, Baud: cfg.baud, Ready: ready, Logger: cfg.logger})
	if err != nil {
		return err
	}
	defer link.Close()

	return firmware.New(lcd, lcd.Contrast(), bus, link, &cfg.fwOpts).Run(ctx)
}

// dataGroup requests D0-D7 as one line set so that the bus changes in a
// single ioctl. It falls back to discrete pins on older kernels.
func dataGroup(w *parbus.Wiring, logger *log.Logger) (gpio.Group, error) {
	if len(gpioioctl.Chips) != 0 {
		ls, err := gpioioctl.Chips[0].LineSet(gpioioctl.LineOutput, gpio.NoEdge, gpio.PullNoChange, w.Data[:]...)
		if err == nil {
			return ls, nil
		}
		logger.Printf("line set: %v, using discrete pins", err)
	}
	return w.DataGroup()
}

// traceLines logs every operation on the control lines.
func traceLines(l *parbus.Lines) {
	wrap := func(p gpio.PinIO) gpio.PinIO {
		if p == nil {
			return nil
		}
		return &gpiotest.LogPinIO{PinIO: p}
	}
	l.LED = wrap(l.LED)
	l.Contrast = wrap(l.Contrast)
	l.Reset = wrap(l.Reset)
	l.MasterSelect = wrap(l.MasterSelect)
	l.Enable = wrap(l.Enable)
	l.ReadWrite = wrap(l.ReadWrite)
	l.Mode = wrap(l.Mode)
	for ix, p := range l.ChipSelect {
		l.ChipSelect[ix] = wrap(p)
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "model100: %s.\n", err)
		os.Exit(1)
	}
}
