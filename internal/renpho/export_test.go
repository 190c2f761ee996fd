// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

// Bridges for the external test package.
var BuildMeasurement = buildMeasurement

type RawMeasurement = rawMeasurement
