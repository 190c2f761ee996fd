// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

import (
	"math"

	"github.com/ra486/hacs-renpho-health/pkg/pointer"
)

// # Derived Record

// kilogramsToPounds is the fixed conversion factor for the imperial weight
// reading.
const kilogramsToPounds = 2.20462

// rawMeasurement is the vendor's per-day reading document. All fields may be
// absent.
type rawMeasurement struct {
	Weight         *float64 `json:"weight"`
	Bodyfat        *float64 `json:"bodyfat"`
	BMI            *float64 `json:"bmi"`
	Muscle         *float64 `json:"muscle"`
	Water          *float64 `json:"water"`
	Bone           *float64 `json:"bone"`
	BMR            *float64 `json:"bmr"`
	Bodyage        *float64 `json:"bodyage"`
	Visfat         *float64 `json:"visfat"`
	Subfat         *float64 `json:"subfat"`
	Protein        *float64 `json:"protein"`
	Sinew          *float64 `json:"sinew"`
	FatFreeWeight  *float64 `json:"fatFreeWeight"`
	HeartRate      *float64 `json:"heartRate"`
	LocalCreatedAt *string  `json:"localCreatedAt"`
	ScaleName      *string  `json:"scaleName"`
}

// Measurement is the flattened, unit-converted record produced per fetch for
// presentation. A nil field means the underlying data was absent; values are
// never fabricated beyond the defined weight and kg→lbs fallbacks.
type Measurement struct {
	WeightKg        *float64 `json:"weight_kg"`
	WeightLbs       *float64 `json:"weight_lbs"`
	Bodyfat         *float64 `json:"bodyfat"`
	BMI             *float64 `json:"bmi"`
	Muscle          *float64 `json:"muscle"`
	Water           *float64 `json:"water"`
	Bone            *float64 `json:"bone"`
	BMR             *float64 `json:"bmr"`
	Bodyage         *float64 `json:"bodyage"`
	Visfat          *float64 `json:"visfat"`
	Subfat          *float64 `json:"subfat"`
	Protein         *float64 `json:"protein"`
	Sinew           *float64 `json:"sinew"`
	FatFreeWeight   *float64 `json:"fat_free_weight"`
	HeartRate       *float64 `json:"heart_rate"`
	HeightCm        *float64 `json:"height_cm"`
	WeightGoalKg    *float64 `json:"weight_goal_kg"`
	BodyfatGoal     *float64 `json:"bodyfat_goal"`
	LastMeasurement *string  `json:"last_measurement"`
	ScaleName       *string  `json:"scale_name"`
}

// buildMeasurement flattens a raw reading and the session profile into the
// derived record. reading may be nil when today has no scale data; profile
// fallbacks still apply.
func buildMeasurement(reading *rawMeasurement, profile UserInfo) *Measurement {
	if reading == nil {
		reading = &rawMeasurement{}
	}

	// Weight falls back to the profile's home weight when today's reading
	// lacks one (or reports zero).
	weightKg := reading.Weight
	if weightKg == nil || *weightKg == 0 {
		weightKg = profile.Weight
	}

	// The imperial reading exists only when a metric weight does.
	var weightLbs *float64
	if weightKg != nil && *weightKg != 0 {
		weightLbs = pointer.To(math.Round(*weightKg*kilogramsToPounds*10) / 10)
	}

	return &Measurement{
		WeightKg:        weightKg,
		WeightLbs:       weightLbs,
		Bodyfat:         reading.Bodyfat,
		BMI:             reading.BMI,
		Muscle:          reading.Muscle,
		Water:           reading.Water,
		Bone:            reading.Bone,
		BMR:             reading.BMR,
		Bodyage:         reading.Bodyage,
		Visfat:          reading.Visfat,
		Subfat:          reading.Subfat,
		Protein:         reading.Protein,
		Sinew:           reading.Sinew,
		FatFreeWeight:   reading.FatFreeWeight,
		HeartRate:       reading.HeartRate,
		HeightCm:        profile.Height,
		WeightGoalKg:    profile.WeightGoal,
		BodyfatGoal:     profile.BodyfatGoal,
		LastMeasurement: reading.LocalCreatedAt,
		ScaleName:       reading.ScaleName,
	}
}
