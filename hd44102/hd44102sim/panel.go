// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44102sim emulates a bank of HD44102 at the pin level.
//
// A Panel hands out fake pins for every line of a parbus.Bus. It watches the
// enable line and, on each falling edge, decodes DI and D0-D7 into a
// transaction that it applies to every addressed chip. The resulting picture
// can be rendered on a terminal or saved as a PNG.
//
// The Panel also checks the bus timing against its clock and records a
// Violation for every transaction a real chip could have missed.
package hd44102sim

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Opts holds the configuration of the panel.
type Opts struct {
	// Chips is the number of HD44102 on the bus.
	Chips int
	// Across is the number of chips per row of the picture.
	Across int
	// SelectLines is the number of per chip select lines wired, see
	// hd44102.ChipSelect. The lines are pulled up on the board.
	SelectLines int
	// Clock is used to check the bus timing. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the Model 100 LCD, 240x64 visible, with one shared select
// line as in parbus.DefaultWiring.
var DefaultOpts = Opts{
	Chips:       10,
	Across:      5,
	SelectLines: 1,
}

// Colors of the rendered picture.
var (
	Paper = color.NRGBA{R: 0xA8, G: 0xB8, B: 0x90, A: 0xFF}
	Ink   = color.NRGBA{R: 0x20, G: 0x28, B: 0x20, A: 0xFF}
)

// Violation is a bus cycle that doesn't meet the chip requirements.
type Violation struct {
	// N is the number of transactions latched before the violation.
	N   int
	Msg string
}

func (v Violation) String() string {
	return fmt.Sprintf("#%d: %s", v.N, v.Msg)
}

// Panel is the emulated display.
type Panel struct {
	clk    clockwork.Clock
	across int

	mu         sync.Mutex
	lines      []*simPin
	data       []*simPin
	levels     map[parbus.Line]gpio.Level
	value      byte
	busAt      time.Time
	busyUntil  time.Time
	duty       gpio.Duty
	chips      []Chip
	count      int
	violations []Violation
}

// New returns a Panel with every chip held in reset.
func New(opts *Opts) *Panel {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Chips <= 0 {
		o.Chips = DefaultOpts.Chips
	}
	if o.Across <= 0 || o.Across > o.Chips {
		o.Across = o.Chips
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	p := &Panel{
		clk:    o.Clock,
		across: o.Across,
		levels: map[parbus.Line]gpio.Level{},
		chips:  make([]Chip, o.Chips),
	}
	for l := parbus.LED; l <= parbus.Mode; l++ {
		p.lines = append(p.lines, p.newPin(l.String(), l, -1))
	}
	for n := range o.SelectLines {
		l := parbus.ChipSelect(n)
		s := p.newPin(l.String(), l, -1)
		s.L = gpio.High
		p.levels[l] = gpio.High
		p.lines = append(p.lines, s)
	}
	for bit := range parbus.BusWidth {
		p.data = append(p.data, p.newPin(fmt.Sprintf("D%d", bit), -1, bit))
	}
	return p
}

func (p *Panel) newPin(name string, l parbus.Line, bit int) *simPin {
	s := &simPin{p: p, line: l, bit: bit}
	s.N = name
	s.Num = len(p.lines) + len(p.data)
	return s
}

// Lines returns the control lines, to be passed to parbus.New.
func (p *Panel) Lines() *parbus.Lines {
	lines := &parbus.Lines{
		LED:          p.lines[parbus.LED],
		Contrast:     p.lines[parbus.Contrast],
		Reset:        p.lines[parbus.Reset],
		MasterSelect: p.lines[parbus.MasterSelect],
		Enable:       p.lines[parbus.Enable],
		ReadWrite:    p.lines[parbus.ReadWrite],
		Mode:         p.lines[parbus.Mode],
	}
	for _, s := range p.lines[parbus.Mode+1:] {
		lines.ChipSelect = append(lines.ChipSelect, s)
	}
	return lines
}

// Data returns D0-D7 as a group.
func (p *Panel) Data() gpio.Group {
	pins := make([]gpio.PinOut, len(p.data))
	for ix, s := range p.data {
		pins[ix] = s
	}
	return parbus.NewGroup(pins...)
}

// Bus returns a parbus.Bus wired to the panel.
func (p *Panel) Bus() (*parbus.Bus, error) {
	return parbus.New(p.Lines(), p.Data())
}

// Chips returns the number of chips.
func (p *Panel) Chips() int {
	return len(p.chips)
}

// Chip returns a copy of the state of chip n.
func (p *Panel) Chip(n int) Chip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chips[n]
}

// Level returns the current level of a control line.
func (p *Panel) Level(l parbus.Line) gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[l]
}

// Contrast returns the duty cycle on the contrast line.
func (p *Panel) Contrast() gpio.Duty {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Count returns the number of transactions latched since New.
func (p *Panel) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Violations returns the timing violations seen so far.
func (p *Panel) Violations() []Violation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Violation(nil), p.violations...)
}

// Bounds returns the size of the picture.
func (p *Panel) Bounds() image.Rectangle {
	rows := (len(p.chips) + p.across - 1) / p.across
	return image.Rect(0, 0, p.across*hd44102.Columns, rows*Height)
}

// Frame renders the content of every chip, laid out Across chips per row.
// A dark dot is image1bit.On.
func (p *Panel) Frame() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(p.Bounds())
	p.mu.Lock()
	defer p.mu.Unlock()
	for n := range p.chips {
		c := &p.chips[n]
		x0 := (n % p.across) * hd44102.Columns
		y0 := (n / p.across) * Height
		for y := range Height {
			for x := range hd44102.Columns {
				if c.Pixel(x, y) {
					img.SetBit(x0+x, y0+y, image1bit.On)
				}
			}
		}
	}
	return img
}

// Halt implements conn.Resource. It is a no-op.
func (p *Panel) Halt() error {
	return nil
}

func (p *Panel) String() string {
	return fmt.Sprintf("hd44102sim.Panel{chips: %d}", len(p.chips))
}

// lineChanged is called with p.mu held.
func (p *Panel) lineChanged(l parbus.Line, level gpio.Level) {
	prev := p.levels[l]
	p.levels[l] = level
	now := p.clk.Now()
	switch l {
	case parbus.Mode:
		if prev != level && bool(p.levels[parbus.Enable]) {
			p.violation("DI changed while EN is high")
		}
	case parbus.Reset:
		if level == gpio.Low {
			for n := range p.chips {
				p.chips[n].reset()
			}
		}
	case parbus.Enable:
		switch {
		case prev == gpio.Low && level == gpio.High:
			if now.Before(p.busyUntil) {
				p.violation(fmt.Sprintf("EN raised %s into the busy time", p.busyUntil.Sub(now)))
			}
		case prev == gpio.High && level == gpio.Low:
			p.latch(now)
		}
	}
}

// dataChanged is called with p.mu held.
func (p *Panel) dataChanged(bit int, level gpio.Level) {
	v := p.value &^ (1 << bit)
	if level == gpio.High {
		v |= 1 << bit
	}
	if v != p.value {
		p.value = v
		p.busAt = p.clk.Now()
	}
}

// latch is called on the EN falling edge with p.mu held.
func (p *Panel) latch(now time.Time) {
	if d := now.Sub(p.busAt); d < hd44102.SetupHold {
		p.violation(fmt.Sprintf("D0-D7 held %s before EN fell", d))
	}
	t := hd44102.Transaction{Payload: p.value, Mode: hd44102.Mode(p.levels[parbus.Mode])}
	p.busyUntil = now.Add(t.Mode.Delay())
	if p.levels[parbus.ReadWrite] == gpio.High {
		p.violation(fmt.Sprintf("%s with RW high", t))
		return
	}
	p.count++
	if p.levels[parbus.Reset] == gpio.Low || p.levels[parbus.MasterSelect] == gpio.Low {
		return
	}
	for n := range p.chips {
		if p.selected(n) {
			p.chips[n].latch(t)
		}
	}
}

func (p *Panel) selected(n int) bool {
	switch lines := len(p.lines) - int(parbus.Mode) - 1; lines {
	case 0:
		return true
	case 1:
		return bool(p.levels[parbus.ChipSelect(0)])
	default:
		return n < lines && bool(p.levels[parbus.ChipSelect(n)])
	}
}

func (p *Panel) violation(msg string) {
	p.violations = append(p.violations, Violation{N: p.count, Msg: msg})
}

// simPin is a gpiotest.Pin that reports its changes to the panel.
type simPin struct {
	gpiotest.Pin
	p    *Panel
	line parbus.Line
	bit  int
}

// Out implements gpio.PinOut.
func (s *simPin) Out(l gpio.Level) error {
	if err := s.Pin.Out(l); err != nil {
		return err
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.bit >= 0 {
		s.p.dataChanged(s.bit, l)
	} else {
		s.p.lineChanged(s.line, l)
	}
	return nil
}

// PWM implements gpio.PinOut.
func (s *simPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if err := s.Pin.PWM(duty, f); err != nil {
		return err
	}
	if s.line == parbus.Contrast {
		s.p.mu.Lock()
		s.p.duty = duty
		s.p.mu.Unlock()
	}
	return nil
}

var _ conn.Resource = &Panel{}
var _ gpio.PinIO = &simPin{}
