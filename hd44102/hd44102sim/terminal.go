// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102sim

import (
	"bytes"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Terminal renders frames to a console using ANSI color codes.
type Terminal struct {
	w       io.Writer
	palette ansi256.Palette

	buf bytes.Buffer
}

// NewTerminal returns a Terminal writing to w, or to stdout if w is nil.
// palette may be nil to use ansi256.Default.
func NewTerminal(w io.Writer, palette *ansi256.Palette) *Terminal {
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	if palette == nil {
		palette = ansi256.Default
	}
	return &Terminal{w: w, palette: *palette}
}

func (t *Terminal) String() string {
	return "Terminal"
}

// Halt implements conn.Resource.
//
// It resets the colors so the shell prompt is not corrupted.
func (t *Terminal) Halt() error {
	_, err := t.w.Write([]byte("\n\033[0m"))
	return err
}

// Draw writes img at the top left of the console, one character per pixel.
// A 1 bit image is drawn with Ink and Paper.
func (t *Terminal) Draw(img image.Image) error {
	// Reuse the buffer across calls, a frame is redrawn many times per
	// second.
	t.buf.Reset()
	_, _ = t.buf.WriteString("\033[H\033[0m")
	r := img.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			_, _ = io.WriteString(&t.buf, t.palette.Block(colorAt(img, x, y)))
		}
		_, _ = t.buf.WriteString("\033[0m\r\n")
	}
	_, err := t.buf.WriteTo(t.w)
	return err
}

func colorAt(img image.Image, x, y int) color.NRGBA {
	if b, ok := img.(*image1bit.VerticalLSB); ok {
		if b.BitAt(x, y) {
			return Ink
		}
		return Paper
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
