// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tps65185 drives the Texas Instruments TPS65185 power management IC
// found next to electrophoretic panels.
//
// The chip also samples the panel thermistor. Dev only exposes that reading,
// implementing physic.SenseEnv so it can feed the temperature to ebc.New.
// Power sequencing is left to the platform.
//
// Range: -10°C - 85°C
//
// Resolution: 1°C
//
// For detailed information, refer to the [datasheet].
//
// [datasheet]: https://www.ti.com/lit/ds/symlink/tps65185.pdf
package tps65185
