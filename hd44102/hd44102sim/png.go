// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44102sim

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
)

// Snapshot rendering.
const (
	// DotSize is the pitch of one pixel in a snapshot.
	DotSize = 4
	// captionHeight is the band under the dots holding the caption.
	captionHeight = 24
)

// Snapshot draws the current frame scaled up by DotSize with a caption
// giving the contrast and the number of transactions.
func (p *Panel) Snapshot() (*gg.Context, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("hd44102sim: font: %w", err)
	}
	frame := p.Frame()
	r := frame.Bounds()
	dc := gg.NewContext(r.Dx()*DotSize, r.Dy()*DotSize+captionHeight)
	dc.SetColor(Paper)
	dc.Clear()

	// One square per dot with a gap, like the real glass.
	dc.SetColor(Ink)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if frame.BitAt(x, y) {
				dc.DrawRectangle(float64(x*DotSize), float64(y*DotSize), DotSize-1, DotSize-1)
			}
		}
	}
	dc.Fill()

	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: 14}))
	duty := p.Contrast()
	caption := fmt.Sprintf("%d chips, contrast %d/256, %d transactions", p.Chips(), duty/(gpio.DutyMax/256), p.Count())
	dc.DrawStringAnchored(caption, 4, float64(r.Dy()*DotSize+captionHeight/2), 0, 0.5)
	return dc, nil
}

// EncodePNG writes a snapshot as PNG to w.
func (p *Panel) EncodePNG(w io.Writer) error {
	dc, err := p.Snapshot()
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG writes a snapshot as PNG to path.
func (p *Panel) SavePNG(path string) error {
	dc, err := p.Snapshot()
	if err != nil {
		return err
	}
	return dc.SavePNG(path)
}
