// Package survey rates planets for settlement using layered simplex noise.
// Temperature, atmosphere, and water fields are sampled at a planet's galactic
// coordinates and combined into a 0-100 habitability score.
package survey

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/starcolony/internal/mathx"
)

// Climate is the dominant character of a surveyed world.
type Climate string

const (
	ClimateTemperate Climate = "temperate"
	ClimateOceanic   Climate = "oceanic"
	ClimateArid      Climate = "arid"
	ClimateFrozen    Climate = "frozen"
	ClimateVolcanic  Climate = "volcanic"
	ClimateBarren    Climate = "barren"
)

// MinHabitability keeps surveyed worlds settleable, if barely.
const MinHabitability = 5

// Report is the result of surveying one planet.
type Report struct {
	SystemID     uint64  `json:"system_id"`
	PlanetID     uint64  `json:"planet_id"`
	Temperature  float64 `json:"temperature"` // 0 frozen .. 1 molten
	Atmosphere   float64 `json:"atmosphere"`  // 0 vacuum .. 1 breathable
	Water        float64 `json:"water"`
	Climate      Climate `json:"climate"`
	Habitability int     `json:"habitability"`
	Capacity     int     `json:"capacity"` // Suggested base max population
}

// Surveyor samples the noise fields for one galaxy seed.
type Surveyor struct {
	temp  opensimplex.Noise
	atmo  opensimplex.Noise
	water opensimplex.Noise
}

// New creates a surveyor. The same seed always yields the same reports.
func New(seed int64) *Surveyor {
	return &Surveyor{
		temp:  opensimplex.NewNormalized(seed),
		atmo:  opensimplex.NewNormalized(seed + 1),
		water: opensimplex.NewNormalized(seed + 2),
	}
}

// Survey rates a planet. Systems are spread along x and planets within a system along y.
func (s *Surveyor) Survey(systemID, planetID uint64) Report {
	x := float64(systemID) * 3.7
	y := float64(planetID) * 1.3

	r := Report{
		SystemID:    systemID,
		PlanetID:    planetID,
		Temperature: octaveNoise(s.temp, x, y, 3, 0.09, 0.5),
		Atmosphere:  octaveNoise(s.atmo, x, y, 4, 0.07, 0.5),
		Water:       octaveNoise(s.water, x, y, 3, 0.08, 0.5),
	}
	r.Climate = classify(r.Temperature, r.Atmosphere, r.Water)

	tempFit := 1 - math.Abs(r.Temperature-0.55)*2
	score := 0.4*tempFit + 0.35*r.Atmosphere + 0.25*r.Water
	r.Habitability = mathx.Clamp(int(math.Round(score*100)), MinHabitability, 100)
	r.Capacity = 300 + r.Habitability*20
	return r
}

func classify(temp, atmo, water float64) Climate {
	switch {
	case atmo < 0.2:
		return ClimateBarren
	case temp > 0.8:
		return ClimateVolcanic
	case temp < 0.25:
		return ClimateFrozen
	case water < 0.3:
		return ClimateArid
	case water > 0.7:
		return ClimateOceanic
	}
	return ClimateTemperate
}

// octaveNoise layers several frequencies of noise and renormalizes to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
