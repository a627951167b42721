// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102sim

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/tomn46037/model100/hd44102"
	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
)

// sleeper moves the fake clock forward instead of blocking, so the panel
// sees the delays the driver asked for.
type sleeper struct {
	clockwork.FakeClock
}

func (s sleeper) Sleep(d time.Duration) {
	s.Advance(d)
}

// noSleep skips every delay.
type noSleep struct{}

func (noSleep) Sleep(time.Duration) {}

func newTestPanel(t *testing.T, po Opts, do hd44102.Opts) (*Panel, *hd44102.Dev) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	po.Clock = fc
	p := New(&po)
	bus, err := p.Bus()
	if err != nil {
		t.Fatal(err)
	}
	if do.Clock == nil {
		do.Clock = sleeper{fc}
	}
	d, err := hd44102.New(bus, &do)
	if err != nil {
		t.Fatal(err)
	}
	return p, d
}

func TestInit(t *testing.T) {
	p, _ := newTestPanel(t, DefaultOpts, hd44102.DefaultOpts)

	if v := p.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
	if got := p.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	for n := range p.Chips() {
		c := p.Chip(n)
		page, col := c.Address()
		if !c.On() || c.CountsDown() || page != 0 || col != 0 || c.StartPage() != 0 {
			t.Errorf("chip %d: %s", n, &c)
		}
	}
	if got, want := p.Contrast(), hd44102.ContrastLevel(20).Duty(); got != want {
		t.Errorf("Contrast() = %s, want %s", got, want)
	}
	for _, l := range []parbus.Line{parbus.Reset, parbus.MasterSelect} {
		if p.Level(l) != gpio.High {
			t.Errorf("%s is low", l)
		}
	}
	for _, l := range []parbus.Line{parbus.Enable, parbus.ReadWrite} {
		if p.Level(l) != gpio.Low {
			t.Errorf("%s is high", l)
		}
	}
}

func TestDataWrap(t *testing.T) {
	p, d := newTestPanel(t, DefaultOpts, hd44102.DefaultOpts)

	data := make([]byte, 60)
	for ix := range data {
		data[ix] = byte(ix + 1)
	}
	if _, err := d.Write(data); err != nil {
		t.Fatal(err)
	}
	if v := p.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
	for n := range p.Chips() {
		c := p.Chip(n)
		if page, col := c.Address(); page != 1 || col != 10 {
			t.Fatalf("chip %d address = (%d, %d), want (1, 10)", n, page, col)
		}
		for ix, b := range data {
			page, col := ix/hd44102.Columns, ix%hd44102.Columns
			if got := c.RAM(page, col); got != b {
				t.Fatalf("chip %d RAM(%d, %d) = %#02x, want %#02x", n, page, col, got, b)
			}
		}
	}
}

func TestSelectPerChip(t *testing.T) {
	p, d := newTestPanel(t,
		Opts{Chips: 3, Across: 3, SelectLines: 3},
		hd44102.Opts{Chips: 3})

	if err := d.ChipSelect().Select(1); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteByte(0xFF); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for n := range p.Chips() {
		c := p.Chip(n)
		got = append(got, c.RAM(0, 0))
	}
	if diff := cmp.Diff(got, []byte{0, 0xFF, 0}); diff != "" {
		t.Errorf("RAM(0, 0) difference (-got +want):\n%s", diff)
	}
}

func TestFrame(t *testing.T) {
	p, d := newTestPanel(t, DefaultOpts, hd44102.DefaultOpts)

	if got, want := p.Frame().Bounds().Size(), (p.Bounds().Size()); got != want || want.X != 250 || want.Y != 64 {
		t.Fatalf("Frame() size = %s, want 250x64", got)
	}
	// Column 0 of page 0 gets the top dot, column 1 of page 1 the 9th row.
	if err := d.WriteByte(0x01); err != nil {
		t.Fatal(err)
	}
	if err := d.Command(hd44102.SetAddress(1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteByte(0x01); err != nil {
		t.Fatal(err)
	}
	img := p.Frame()
	for n := range p.Chips() {
		x0, y0 := (n%5)*hd44102.Columns, (n/5)*Height
		if !img.BitAt(x0, y0) {
			t.Errorf("chip %d: dot (0, 0) is clear", n)
		}
		if !img.BitAt(x0+1, y0+8) {
			t.Errorf("chip %d: dot (1, 8) is clear", n)
		}
		if img.BitAt(x0+1, y0) {
			t.Errorf("chip %d: dot (1, 0) is set", n)
		}
	}

	// Scroll page 1 to the top.
	if err := d.Command(hd44102.SetStartPage(1)); err != nil {
		t.Fatal(err)
	}
	img = p.Frame()
	if !img.BitAt(1, 0) || !img.BitAt(0, 24) {
		t.Error("start page not applied")
	}

	if err := d.Command(hd44102.DisplayOff); err != nil {
		t.Fatal(err)
	}
	img = p.Frame()
	for _, b := range img.Pix {
		if b != 0 {
			t.Fatal("dots shown with the display off")
		}
	}
}

func TestHalt(t *testing.T) {
	p, d := newTestPanel(t, DefaultOpts, hd44102.DefaultOpts)
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	for n := range p.Chips() {
		c := p.Chip(n)
		if c.On() {
			t.Errorf("chip %d still on", n)
		}
	}
	if p.Level(parbus.Reset) != gpio.Low || p.Contrast() != 0 {
		t.Error("chips not held in reset")
	}
}

func TestViolationBusy(t *testing.T) {
	p, _ := newTestPanel(t, DefaultOpts, hd44102.Opts{Clock: noSleep{}})

	v := p.Violations()
	if len(v) == 0 {
		t.Fatal("no violation without delays")
	}
	if !strings.Contains(v[0].Msg, "before EN fell") {
		t.Errorf("first violation = %s", v[0])
	}
	busy := false
	for _, x := range v {
		busy = busy || strings.Contains(x.Msg, "busy time")
	}
	if !busy {
		t.Errorf("busy time violation not detected: %v", v)
	}
}

func TestViolationMode(t *testing.T) {
	p := New(&Opts{Clock: clockwork.NewFakeClock()})
	bus, err := p.Bus()
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range []parbus.Line{parbus.Enable, parbus.Mode, parbus.ReadWrite} {
		if err := bus.ConfigureDirection(l, parbus.Output); err != nil {
			t.Fatal(err)
		}
	}
	if err := bus.Write(parbus.Enable, gpio.High); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write(parbus.Mode, gpio.High); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write(parbus.ReadWrite, gpio.High); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write(parbus.Enable, gpio.Low); err != nil {
		t.Fatal(err)
	}
	want := []Violation{
		{N: 0, Msg: "DI changed while EN is high"},
		{N: 0, Msg: "Data(0x00) with RW high"},
	}
	if diff := cmp.Diff(p.Violations(), want); diff != "" {
		t.Errorf("Violations() difference (-got +want):\n%s", diff)
	}
	if p.Count() != 0 {
		t.Errorf("read cycle counted as a write")
	}
}
