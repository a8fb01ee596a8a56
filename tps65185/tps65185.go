// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tps65185

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// Addr is the fixed I²C address of the chip.
	Addr uint16 = 0x68

	regTemperature byte = 0x00
	regThermistor  byte = 0x0D
	regRevision    byte = 0x10

	thermRead    byte = 1 << 7
	thermConvEnd byte = 1 << 5

	convTries = 10
	convPoll  = time.Millisecond
)

// Opts holds the configuration applied by New.
type Opts struct {
	// Addr defaults to Addr when zero.
	Addr uint16
}

// Dev is a TPS65185.
type Dev struct {
	d        *i2c.Dev
	revision byte

	mu   sync.Mutex
	stop chan struct{}
}

// New opens the TPS65185 on bus b.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	addr := Addr
	if opts != nil && opts.Addr != 0 {
		addr = opts.Addr
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}
	rev, err := d.readReg(regRevision)
	if err != nil {
		return nil, fmt.Errorf("tps65185: %w", err)
	}
	d.revision = rev
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("tps65185{%s, rev 0x%02x}", d.d, d.revision)
}

// Sense implements physic.SenseEnv.
func (d *Dev) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.readTemperature()
	if err != nil {
		return err
	}
	env.Temperature = t
	return nil
}

// SenseContinuous implements physic.SenseEnv. Halt stops it.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < 100*time.Millisecond {
		return nil, errors.New("tps65185: invalid duration, minimum 100ms")
	}
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return nil, errors.New("tps65185: already sensing continuously")
	}
	stop := make(chan struct{})
	d.stop = stop
	d.mu.Unlock()

	ch := make(chan physic.Env)
	go func() {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case ch <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = physic.Kelvin
	env.Pressure = 0
	env.Humidity = 0
}

// Halt stops SenseContinuous. The rails are left alone.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	return nil
}

// readTemperature triggers a thermistor conversion and returns its result.
func (d *Dev) readTemperature() (physic.Temperature, error) {
	if err := d.writeReg(regThermistor, thermRead); err != nil {
		return 0, err
	}
	for i := 0; ; i++ {
		v, err := d.readReg(regThermistor)
		if err != nil {
			return 0, err
		}
		if v&thermConvEnd != 0 {
			break
		}
		if i == convTries {
			return 0, errors.New("tps65185: thermistor conversion timed out")
		}
		time.Sleep(convPoll)
	}
	v, err := d.readReg(regTemperature)
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(int8(v))*physic.Kelvin, nil
}

func (d *Dev) readReg(reg byte) (byte, error) {
	var r [1]byte
	err := d.d.Tx([]byte{reg}, r[:])
	return r[0], err
}

func (d *Dev) writeReg(reg, v byte) error {
	return d.d.Tx([]byte{reg, v}, nil)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
