// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tps65185

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func newDev(t *testing.T, ops ...i2ctest.IO) (*Dev, *i2ctest.Playback) {
	pb := &i2ctest.Playback{
		Ops:       append([]i2ctest.IO{{Addr: Addr, W: []byte{regRevision}, R: []byte{0x65}}}, ops...),
		DontPanic: true,
	}
	d, err := New(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d, pb
}

func TestSense(t *testing.T) {
	data := []struct {
		raw  byte
		want physic.Temperature
	}{
		{0x19, physic.ZeroCelsius + 25*physic.Kelvin},
		{0x00, physic.ZeroCelsius},
		{0xf6, physic.ZeroCelsius - 10*physic.Kelvin},
		{0x55, physic.ZeroCelsius + 85*physic.Kelvin},
	}
	for _, tc := range data {
		d, pb := newDev(t,
			i2ctest.IO{Addr: Addr, W: []byte{regThermistor, thermRead}},
			i2ctest.IO{Addr: Addr, W: []byte{regThermistor}, R: []byte{0x00}},
			i2ctest.IO{Addr: Addr, W: []byte{regThermistor}, R: []byte{thermConvEnd}},
			i2ctest.IO{Addr: Addr, W: []byte{regTemperature}, R: []byte{tc.raw}},
		)
		var e physic.Env
		if err := d.Sense(&e); err != nil {
			t.Fatal(err)
		}
		if e.Temperature != tc.want {
			t.Fatalf("Sense(0x%02x) = %s, want %s", tc.raw, e.Temperature, tc.want)
		}
		if err := pb.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSenseTimeout(t *testing.T) {
	ops := []i2ctest.IO{{Addr: Addr, W: []byte{regThermistor, thermRead}}}
	for i := 0; i <= convTries; i++ {
		ops = append(ops, i2ctest.IO{Addr: Addr, W: []byte{regThermistor}, R: []byte{0x00}})
	}
	d, pb := newDev(t, ops...)
	var e physic.Env
	if err := d.Sense(&e); err == nil {
		t.Fatal("expected timeout")
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSenseContinuous(t *testing.T) {
	d, _ := newDev(t,
		i2ctest.IO{Addr: Addr, W: []byte{regThermistor, thermRead}},
		i2ctest.IO{Addr: Addr, W: []byte{regThermistor}, R: []byte{thermConvEnd}},
		i2ctest.IO{Addr: Addr, W: []byte{regTemperature}, R: []byte{0x1e}},
	)
	if _, err := d.SenseContinuous(time.Millisecond); err == nil {
		t.Fatal("expected interval error")
	}
	ch, err := d.SenseContinuous(100 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SenseContinuous(100 * time.Millisecond); err == nil {
		t.Fatal("expected busy error")
	}
	e := <-ch
	if want := physic.ZeroCelsius + 30*physic.Kelvin; e.Temperature != want {
		t.Fatalf("SenseContinuous() = %s, want %s", e.Temperature, want)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
	// Stopped: a new continuous read may start.
	ch, err = d.SenseContinuous(100 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
}
