// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package model100 is a container for the packages driving the LCD of a
// TRS-80 Model 100 from a single board computer.
//
// parbus owns the GPIO lines of the LCD connector. hd44102 speaks the
// protocol of the HD44102 column drivers over it and hd44102sim emulates a
// panel of them. hostlink is the byte link to the host and firmware is the
// control loop tying everything together. The cmd/model100 program runs it.
package model100
