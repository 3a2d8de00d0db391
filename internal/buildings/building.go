// Package buildings provides colony structures: their catalog definitions, level
// scaling, and the damage/repair lifecycle.
package buildings

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/mathx"
)

// ID identifies a building within its colony.
type ID uint32

// Type is the catalog key of a building kind.
type Type string

// Category groups building types for colony-level checks.
type Category string

const (
	CategoryAgriculture    Category = "agriculture"
	CategoryMining         Category = "mining"
	CategoryEnergy         Category = "energy"
	CategoryIndustry       Category = "industry"
	CategoryResearch       Category = "research"
	CategoryCommerce       Category = "commerce"
	CategoryHousing        Category = "housing"
	CategoryEntertainment  Category = "entertainment"
	CategoryMedical        Category = "medical"
	CategoryEducation      Category = "education"
	CategorySecurity       Category = "security"
	CategoryDefense        Category = "defense"
	CategoryAdministration Category = "administration"
)

// Health thresholds.
const (
	MaxHealth       = 100
	ActiveThreshold = 50 // Below this a building is inactive
)

var (
	ErrUnknownType  = errors.New("unknown building type")
	ErrMaxLevel     = errors.New("building already at max level")
	ErrMinLevel     = errors.New("building already at level 1")
	ErrDestroyed    = errors.New("building destroyed")
	ErrPrerequisite = errors.New("building prerequisites unmet")
)

// Bonuses are the per-level-1 effects of an active building. Percent fields are fractions.
type Bonuses struct {
	Credits    float64 `yaml:"credits" json:"credits,omitempty"`
	Research   float64 `yaml:"research" json:"research,omitempty"`
	Production float64 `yaml:"production" json:"production,omitempty"`
	Food       float64 `yaml:"food" json:"food,omitempty"`
	Population int     `yaml:"population" json:"population,omitempty"`
	Defense    int     `yaml:"defense" json:"defense,omitempty"`
	Morale     int     `yaml:"morale" json:"morale,omitempty"`
	Stability  int     `yaml:"stability" json:"stability,omitempty"`
}

// Scale multiplies every bonus by f. Flat bonuses truncate.
func (b Bonuses) Scale(f float64) Bonuses {
	return Bonuses{
		Credits:    b.Credits * f,
		Research:   b.Research * f,
		Production: b.Production * f,
		Food:       b.Food * f,
		Population: int(float64(b.Population) * f),
		Defense:    int(float64(b.Defense) * f),
		Morale:     int(float64(b.Morale) * f),
		Stability:  int(float64(b.Stability) * f),
	}
}

// Percent returns the fractional bonus for a resource, or 0 for resources buildings don't boost.
func (b Bonuses) Percent(r economy.Resource) float64 {
	switch r {
	case economy.Credits:
		return b.Credits
	case economy.Research:
		return b.Research
	case economy.Production:
		return b.Production
	case economy.Food:
		return b.Food
	}
	return 0
}

// JobSlot names a job template and how many level-1 slots of it a building provides.
type JobSlot struct {
	Job   string `yaml:"job" json:"job"`
	Slots int    `yaml:"slots" json:"slots"`
}

// Building is a constructed structure owned by one colony.
type Building struct {
	ID          ID              `json:"id"`
	Type        Type            `json:"type"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Level       int             `json:"level"`
	MaxLevel    int             `json:"max_level"`
	Health      int             `json:"health"`
	Active      bool            `json:"active"`
	Maintenance float64         `json:"maintenance"`
	Bonuses     Bonuses         `json:"bonuses"`
	JobSlots    []JobSlot       `json:"job_slots,omitempty"`
	Jobs        []economy.JobID `json:"jobs,omitempty"` // Colony jobs this building registered
}

// Registry resolves building types to their definitions.
type Registry interface {
	Building(t Type) (*Definition, bool)
}

// Create instantiates a level-1, full-health building of type t.
func Create(reg Registry, id ID, t Type) (*Building, error) {
	def, ok := reg.Building(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return &Building{
		ID:          id,
		Type:        def.Type,
		Name:        def.Name,
		Category:    def.Category,
		Level:       1,
		MaxLevel:    max(def.MaxLevel, 1),
		Health:      MaxHealth,
		Active:      true,
		Maintenance: def.Maintenance,
		Bonuses:     def.Bonuses,
		JobSlots:    append([]JobSlot(nil), def.Jobs...),
	}, nil
}

// Upgrade raises the level by one.
func (b *Building) Upgrade() error {
	if b.Level >= b.MaxLevel {
		return ErrMaxLevel
	}
	b.Level++
	return nil
}

// Downgrade lowers the level by one.
func (b *Building) Downgrade() error {
	if b.Level <= 1 {
		return ErrMinLevel
	}
	b.Level--
	return nil
}

// Damage reduces health. Returns true when the building is destroyed.
func (b *Building) Damage(amount int) bool {
	if amount > 0 {
		b.Health = mathx.Clamp(b.Health-amount, 0, MaxHealth)
		b.Active = b.Health >= ActiveThreshold
	}
	return b.Destroyed()
}

// Repair restores health. Destroyed buildings cannot be repaired.
func (b *Building) Repair(amount int) error {
	if b.Destroyed() {
		return ErrDestroyed
	}
	if amount > 0 {
		b.Health = mathx.Clamp(b.Health+amount, 0, MaxHealth)
		b.Active = b.Health >= ActiveThreshold
	}
	return nil
}

// Destroyed reports whether health has reached zero.
func (b *Building) Destroyed() bool {
	return b.Health <= 0
}

// LevelScale is the bonus and slot multiplier for the current level.
func (b *Building) LevelScale() float64 {
	return 1 + float64(b.Level-1)*0.5
}

// ScaledBonuses returns the declared bonuses scaled by level, regardless of activity.
func (b *Building) ScaledBonuses() Bonuses {
	return b.Bonuses.Scale(b.LevelScale())
}

// EffectiveBonuses is ScaledBonuses for an active building and zero otherwise.
func (b *Building) EffectiveBonuses() Bonuses {
	if !b.Active || b.Destroyed() {
		return Bonuses{}
	}
	return b.ScaledBonuses()
}

// ScaledSlots returns the slot count for a level-1 base at the current level.
func (b *Building) ScaledSlots(base int) int {
	return int(math.Floor(float64(base) * b.LevelScale()))
}
