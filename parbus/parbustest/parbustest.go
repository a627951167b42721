// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package parbustest is meant to be used to test code driving a parbus.Bus.
//
// A Recorder hands out fake pins, a fake data bus and a Sleep method that
// all append to one ordered trace, so tests can assert on the exact
// interleaving of line changes, bus writes and delays.
package parbustest

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomn46037/model100/parbus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// Kind is the kind of a recorded event.
type Kind uint8

const (
	// Out is a pin level change.
	Out Kind = iota + 1
	// In is a pin configured as input.
	In
	// PWM is a pulse train started on a pin.
	PWM
	// Bus is a write to the data bus; Value holds the resulting byte.
	Bus
	// Sleep is a delay; D holds the duration.
	Sleep
)

func (k Kind) String() string {
	switch k {
	case Out:
		return "Out"
	case In:
		return "In"
	case PWM:
		return "PWM"
	case Bus:
		return "Bus"
	case Sleep:
		return "Sleep"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Event is one recorded operation.
type Event struct {
	Kind  Kind
	Pin   string
	Level gpio.Level
	Value byte
	Duty  gpio.Duty
	F     physic.Frequency
	D     time.Duration
}

func (e Event) String() string {
	switch e.Kind {
	case Out:
		return fmt.Sprintf("%s=%s", e.Pin, e.Level)
	case In:
		return fmt.Sprintf("%s<-In", e.Pin)
	case PWM:
		return fmt.Sprintf("%s PWM(%s, %s)", e.Pin, e.Duty, e.F)
	case Bus:
		return fmt.Sprintf("Bus=%#02x", e.Value)
	case Sleep:
		return fmt.Sprintf("Sleep(%s)", e.D)
	default:
		return e.Kind.String()
	}
}

// Recorder records every operation done on its pins, its bus and its Sleep
// method.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	pins   map[string]*Pin
	bus    *Group
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{pins: map[string]*Pin{}}
}

// Pin returns the fake pin named name, creating it on first use.
func (r *Recorder) Pin(name string) *Pin {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pins[name]; ok {
		return p
	}
	p := &Pin{r: r}
	p.N = name
	p.Num = len(r.pins)
	r.pins[name] = p
	return p
}

// Group returns the fake 8 bit data bus.
func (r *Recorder) Group() *Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus == nil {
		r.bus = &Group{r: r}
		for ix := range r.bus.pins {
			r.bus.pins[ix] = &gpiotest.Pin{N: fmt.Sprintf("D%d", ix), Num: 100 + ix}
		}
	}
	return r.bus
}

// Lines returns a parbus.Lines made of recorder pins named after the logical
// lines, with chipSelects per chip select lines.
func (r *Recorder) Lines(chipSelects int) *parbus.Lines {
	lines := &parbus.Lines{
		LED:          r.Pin(parbus.LED.String()),
		Contrast:     r.Pin(parbus.Contrast.String()),
		Reset:        r.Pin(parbus.Reset.String()),
		MasterSelect: r.Pin(parbus.MasterSelect.String()),
		Enable:       r.Pin(parbus.Enable.String()),
		ReadWrite:    r.Pin(parbus.ReadWrite.String()),
		Mode:         r.Pin(parbus.Mode.String()),
	}
	for ix := range chipSelects {
		lines.ChipSelect = append(lines.ChipSelect, r.Pin(parbus.ChipSelect(ix).String()))
	}
	return lines
}

// Bus returns a parbus.Bus wired to the recorder.
func (r *Recorder) Bus(chipSelects int) *parbus.Bus {
	b, err := parbus.New(r.Lines(chipSelects), r.Group())
	if err != nil {
		// The recorder group always has 8 pins.
		panic(err)
	}
	return b
}

// Sleep records a delay. It returns immediately.
func (r *Recorder) Sleep(d time.Duration) {
	r.record(Event{Kind: Sleep, D: d})
}

// Events returns a copy of the trace.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the events of the given kinds.
func (r *Recorder) Filter(kinds ...Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Reset clears the trace. Pin levels are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Pin is a gpiotest.Pin that records its operations.
type Pin struct {
	gpiotest.Pin
	r *Recorder
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.r.record(Event{Kind: In, Pin: p.N})
	return p.Pin.In(pull, edge)
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.r.record(Event{Kind: Out, Pin: p.N, Level: l})
	return p.Pin.Out(l)
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	p.r.record(Event{Kind: PWM, Pin: p.N, Duty: duty, F: f})
	return p.Pin.PWM(duty, f)
}

// Set changes the level seen by Read without recording anything. Use it to
// simulate an external signal.
func (p *Pin) Set(l gpio.Level) {
	p.Lock()
	defer p.Unlock()
	p.L = l
}

// Group is a fake 8 bit data bus.
type Group struct {
	r     *Recorder
	pins  [parbus.BusWidth]*gpiotest.Pin
	mu    sync.Mutex
	value byte
}

// Value returns the last byte written.
func (g *Group) Value() byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Pins implements gpio.Group.
func (g *Group) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(g.pins))
	for ix, p := range g.pins {
		pins[ix] = p
	}
	return pins
}

// ByOffset implements gpio.Group.
func (g *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(g.pins) {
		return nil
	}
	return g.pins[offset]
}

// ByName implements gpio.Group.
func (g *Group) ByName(name string) pin.Pin {
	for _, p := range g.pins {
		if p.N == name {
			return p
		}
	}
	return nil
}

// ByNumber implements gpio.Group.
func (g *Group) ByNumber(number int) pin.Pin {
	for _, p := range g.pins {
		if p.Num == number {
			return p
		}
	}
	return nil
}

// Out implements gpio.Group. The whole resulting byte is recorded.
func (g *Group) Out(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = 0xff
	}
	g.mu.Lock()
	g.value = g.value&^byte(mask) | byte(value&mask)
	v := g.value
	for ix, p := range g.pins {
		_ = p.Out(gpio.Level(v&(1<<ix) != 0))
	}
	g.mu.Unlock()
	g.r.record(Event{Kind: Bus, Value: v})
	return nil
}

// Read implements gpio.Group.
func (g *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	if mask == 0 {
		mask = 0xff
	}
	return gpio.GPIOValue(g.Value()) & mask, nil
}

// WaitForEdge implements gpio.Group.
func (g *Group) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt implements conn.Resource.
func (g *Group) Halt() error {
	return nil
}

func (g *Group) String() string {
	return "parbustest.Group"
}

var _ gpio.PinIO = &Pin{}
var _ gpio.Group = &Group{}
