package pops

import (
	"fmt"
	"strings"
)

// Stratum is a pop's social tier, ordered from Underclass to Elite.
type Stratum uint8

const (
	Underclass Stratum = iota
	Worker
	Specialist
	Elite
)

var stratumNames = [...]string{"underclass", "worker", "specialist", "elite"}

func (s Stratum) String() string {
	if int(s) < len(stratumNames) {
		return stratumNames[s]
	}
	return fmt.Sprintf("stratum(%d)", uint8(s))
}

// MarshalText encodes the stratum by name for JSON and YAML.
func (s Stratum) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a stratum name.
func (s *Stratum) UnmarshalText(b []byte) error {
	v, err := ParseStratum(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStratum maps a case-insensitive name to its Stratum.
func ParseStratum(name string) (Stratum, error) {
	for i, n := range stratumNames {
		if strings.EqualFold(name, n) {
			return Stratum(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stratum %q", name)
}

// MinEducation is the education a pop needs to be promoted into the stratum.
func (s Stratum) MinEducation() int {
	switch s {
	case Worker:
		return 20
	case Specialist:
		return 50
	case Elite:
		return 80
	}
	return 0
}

func (s Stratum) productivity() float64 {
	switch s {
	case Underclass:
		return 0.75
	case Specialist:
		return 1.25
	case Elite:
		return 1.5
	}
	return 1.0
}

func (s Stratum) research() float64 {
	switch s {
	case Underclass:
		return 0.25
	case Worker:
		return 0.75
	case Specialist:
		return 1.5
	}
	return 1.25
}

// Trait is a heritable quirk that scales productivity, research, or happiness gains.
type Trait string

const (
	TraitIndustrious Trait = "industrious"
	TraitIntelligent Trait = "intelligent"
	TraitContent     Trait = "content"
	TraitRebellious  Trait = "rebellious"
	TraitResilient   Trait = "resilient"
	TraitLazy        Trait = "lazy"
)

// TraitModifier holds the multipliers a trait applies.
type TraitModifier struct {
	Productivity float64
	Research     float64
	Happiness    float64
}

var traitTable = map[Trait]TraitModifier{
	TraitIndustrious: {Productivity: 1.15, Research: 1.0, Happiness: 1.0},
	TraitIntelligent: {Productivity: 1.0, Research: 1.2, Happiness: 1.0},
	TraitContent:     {Productivity: 0.95, Research: 1.0, Happiness: 1.25},
	TraitRebellious:  {Productivity: 1.0, Research: 1.05, Happiness: 0.75},
	TraitResilient:   {Productivity: 1.05, Research: 1.0, Happiness: 1.1},
	TraitLazy:        {Productivity: 0.85, Research: 0.95, Happiness: 1.1},
}

// Modifier returns the trait's multipliers; unknown traits are neutral.
func (t Trait) Modifier() TraitModifier {
	if m, ok := traitTable[t]; ok {
		return m
	}
	return TraitModifier{Productivity: 1, Research: 1, Happiness: 1}
}

// Ethos is a pop's political leaning.
type Ethos string

const (
	EthosNeutral       Ethos = ""
	EthosCollectivist  Ethos = "collectivist"
	EthosIndividualist Ethos = "individualist"
	EthosMilitarist    Ethos = "militarist"
	EthosPacifist      Ethos = "pacifist"
	EthosXenophobe     Ethos = "xenophobe"
)

// stability is the ethos' flat per-100 contribution to colony order.
func (e Ethos) stability() int {
	switch e {
	case EthosCollectivist:
		return 2
	case EthosMilitarist:
		return 1
	case EthosIndividualist:
		return -1
	case EthosXenophobe:
		return -2
	}
	return 0
}

// SpeciesProfile carries the species-wide multipliers supplied by the catalog.
type SpeciesProfile struct {
	Productivity float64 `yaml:"productivity" json:"productivity"`
	Research     float64 `yaml:"research" json:"research"`
	Growth       float64 `yaml:"growth" json:"growth"`
	Military     float64 `yaml:"military" json:"military"`
}

// DefaultSpeciesProfile is the neutral profile used for species missing from the catalog.
var DefaultSpeciesProfile = SpeciesProfile{Productivity: 1, Research: 1, Growth: 1, Military: 1}
