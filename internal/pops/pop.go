// Package pops models colony population groups: who they are, how productive they are,
// and how much order they contribute. Pops are owned by exactly one colony; jobs refer to
// them only by PopID.
package pops

import (
	"github.com/talgya/starcolony/internal/mathx"
)

// PopID identifies a pop within its colony.
type PopID uint32

// Tunables shared by the colony pipeline.
const (
	CasualtyHappinessPenalty = 10 // Flat happiness hit whenever casualties are taken
	RefugeeStabilityPenalty  = 5  // Per-100 stability penalty while a refugee is unintegrated
	RefugeeIntegrationTurns  = 5  // Turns until a refugee stops counting as one
	PromotionMinHappiness    = 40 // Unhappy pops do not climb strata
	DemotionHappiness        = 15 // Below this a pop slips a stratum
)

// Pop is a group of inhabitants sharing species, stratum, and outlook.
type Pop struct {
	ID          PopID   `json:"id"`
	Size        int     `json:"size"`
	Species     string  `json:"species"`
	Stratum     Stratum `json:"stratum"`
	Happiness   int     `json:"happiness"` // 0-100
	Education   int     `json:"education"` // 0-100
	Health      int     `json:"health"`    // 0-100
	Traits      []Trait `json:"traits,omitempty"`
	Ethos       Ethos   `json:"ethos"`
	Refugee     bool    `json:"refugee"`
	Origin      uint64  `json:"origin,omitempty"`      // Colony the pop migrated from
	Integration int     `json:"integration,omitempty"` // Turns spent integrating as a refugee

	GrowthProgress float64 `json:"growth_progress,omitempty"` // Fractional growth carried between turns
}

// Grow adds n people. Non-positive amounts are ignored.
func (p *Pop) Grow(n int) {
	if n <= 0 {
		return
	}
	p.Size += n
}

// GrowAtRate grows the pop by size × rate plus any carried fraction, truncating to whole
// people and carrying the remainder. room caps the gain; the carry is dropped when capped.
// Returns the number of people added.
func (p *Pop) GrowAtRate(rate float64, room int) int {
	if p.Size == 0 || rate <= 0 {
		return 0
	}
	total := float64(p.Size)*rate + p.GrowthProgress
	n := int(total)
	p.GrowthProgress = total - float64(n)
	if n > room {
		n = max(room, 0)
		p.GrowthProgress = 0
	}
	p.Grow(n)
	return n
}

// TakeCasualties removes up to n people and applies the casualty happiness penalty.
// Returns how many were actually lost.
func (p *Pop) TakeCasualties(n int) int {
	if n <= 0 || p.Size == 0 {
		return 0
	}
	lost := min(n, p.Size)
	p.Size -= lost
	p.Happiness = mathx.Clamp100(p.Happiness - CasualtyHappinessPenalty)
	return lost
}

// AdjustHappiness shifts happiness by delta. Gains are scaled by the pop's trait
// happiness multiplier; losses are not.
func (p *Pop) AdjustHappiness(delta int) {
	if delta > 0 {
		delta = int(float64(delta)*p.traitMods().Happiness + 0.5)
	}
	p.Happiness = mathx.Clamp100(p.Happiness + delta)
}

// AdjustEducation shifts education by delta, clamped.
func (p *Pop) AdjustEducation(delta int) {
	p.Education = mathx.Clamp100(p.Education + delta)
}

// AdjustHealth shifts health by delta, clamped.
func (p *Pop) AdjustHealth(delta int) {
	p.Health = mathx.Clamp100(p.Health + delta)
}

// PromoteStratum moves the pop one stratum up. Education rises with the new standing.
// Returns false when already Elite.
func (p *Pop) PromoteStratum() bool {
	if p.Stratum >= Elite {
		return false
	}
	p.Stratum++
	p.Education = mathx.Clamp100(p.Education + 10)
	p.Happiness = mathx.Clamp100(p.Happiness + 5)
	return true
}

// DemoteStratum moves the pop one stratum down. Returns false when already Underclass.
func (p *Pop) DemoteStratum() bool {
	if p.Stratum <= Underclass {
		return false
	}
	p.Stratum--
	p.Happiness = mathx.Clamp100(p.Happiness - 10)
	p.Education = mathx.Clamp100(p.Education - 5)
	return true
}

// WantsPromotion reports whether the pop qualifies for the next stratum this turn.
func (p *Pop) WantsPromotion() bool {
	if p.Stratum >= Elite || p.Happiness < PromotionMinHappiness {
		return false
	}
	return p.Education >= (p.Stratum + 1).MinEducation()
}

// WantsDemotion reports whether the pop is miserable enough to slip a stratum.
func (p *Pop) WantsDemotion() bool {
	return p.Stratum > Underclass && p.Happiness < DemotionHappiness
}

// Integrated reports whether the pop counts as a full member of its colony.
func (p *Pop) Integrated() bool {
	return !p.Refugee
}

// AdvanceIntegration ticks refugee integration. Returns true on the turn the pop integrates.
func (p *Pop) AdvanceIntegration() bool {
	if !p.Refugee {
		return false
	}
	p.Integration++
	if p.Integration >= RefugeeIntegrationTurns {
		p.Refugee = false
		p.Integration = 0
		return true
	}
	return false
}

// Split detaches n people into a new pop with identical attributes. The new pop has
// no ID; the receiving colony assigns one. Returns false when n is out of range.
func (p *Pop) Split(n int) (Pop, bool) {
	if n <= 0 || n > p.Size {
		return Pop{}, false
	}
	out := *p
	out.ID = 0
	out.Size = n
	out.GrowthProgress = 0
	out.Traits = append([]Trait(nil), p.Traits...)
	p.Size -= n
	return out, true
}

// ProductivityModifier combines stratum, education, happiness, health, traits, and species.
func (p *Pop) ProductivityModifier(profile SpeciesProfile) float64 {
	m := p.Stratum.productivity()
	m *= 0.5 + float64(p.Education)/100
	m *= 0.75 + float64(p.Happiness)/200
	m *= 0.5 + float64(p.Health)/200
	m *= p.traitMods().Productivity
	return m * profile.Productivity
}

// ResearchModifier is the research analogue of ProductivityModifier; education weighs more.
func (p *Pop) ResearchModifier(profile SpeciesProfile) float64 {
	m := p.Stratum.research()
	m *= 0.25 + float64(p.Education)*0.0125
	m *= 0.8 + float64(p.Happiness)/250
	m *= 0.5 + float64(p.Health)/200
	m *= p.traitMods().Research
	return m * profile.Research
}

// StabilityContribution is the pop's signed effect on colony order, scaled per 100 people.
func (p *Pop) StabilityContribution() int {
	base := float64(p.Happiness-50)/10 + float64(p.Ethos.stability())
	if !p.Integrated() {
		base -= RefugeeStabilityPenalty
	}
	return int(base * float64(p.Size) / 100)
}

// Normalize clamps every bounded attribute back into range.
func (p *Pop) Normalize() {
	p.Size = max(p.Size, 0)
	p.Happiness = mathx.Clamp100(p.Happiness)
	p.Education = mathx.Clamp100(p.Education)
	p.Health = mathx.Clamp100(p.Health)
	p.Stratum = mathx.Clamp(p.Stratum, Underclass, Elite)
}

func (p *Pop) traitMods() TraitModifier {
	out := TraitModifier{Productivity: 1, Research: 1, Happiness: 1}
	for _, t := range p.Traits {
		m, ok := traitTable[t]
		if !ok {
			continue
		}
		out.Productivity *= m.Productivity
		out.Research *= m.Research
		out.Happiness *= m.Happiness
	}
	return out
}
