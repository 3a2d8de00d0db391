// Package colony implements the per-colony population and economy simulation: job
// assignment, production, growth, morale and stability feedback, seeded random events,
// and the colony status machine.
package colony

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/mathx"
	"github.com/talgya/starcolony/internal/pops"
)

// ID identifies a colony across the game.
type ID uint64

// Founding and sizing constants.
const (
	MinColonists         = 10
	MaxInfrastructure    = 10
	MaxRecentEvents      = 20
	BaseBuildingSlots    = 5
	SlotsPerInfra        = 3
	InfrastructureCost   = 150 // Production per level, × the target level
	DefaultMaxPopulation = 1000
)

var (
	ErrTooFewColonists        = errors.New("too few colonists")
	ErrAbandoned              = errors.New("colony abandoned")
	ErrBuildingNotFound       = errors.New("building not found")
	ErrUniqueBuilding         = errors.New("unique building already present")
	ErrNoBuildingSlots        = errors.New("no free building slots")
	ErrInsufficientFunds      = errors.New("insufficient credits")
	ErrInsufficientProduction = errors.New("insufficient production")
	ErrMaxInfrastructure      = errors.New("infrastructure at maximum")
	ErrNotInRebellion         = errors.New("colony is not in rebellion")
	ErrInvalidState           = errors.New("invalid colony state")
)

// Catalog is the reference data a colony is simulated against.
type Catalog interface {
	buildings.Registry
	Job(name string) (economy.JobTemplate, bool)
	SpeciesProfile(species string) pops.SpeciesProfile
	FoundingJobs() []buildings.JobSlot
}

// State is the complete serializable state of a colony.
type State struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	PlanetID    uint64 `json:"planet_id"`
	SystemID    uint64 `json:"system_id"`
	EmpireID    uint64 `json:"empire_id"`
	Species     string `json:"species"` // Founding species
	Type        Type   `json:"type"`
	Status      Status `json:"status"`
	FoundedTurn uint64 `json:"founded_turn"`
	Age         int    `json:"age"` // Turns processed since founding

	Pops      []*pops.Pop           `json:"pops"`
	Buildings []*buildings.Building `json:"buildings"`
	Jobs      []*economy.Job        `json:"jobs"`

	Morale         int `json:"morale"`
	Stability      int `json:"stability"`
	Loyalty        int `json:"loyalty"`
	Habitability   int `json:"habitability"`
	Infrastructure int `json:"infrastructure"`

	BaseMaxPopulation int `json:"base_max_population"`
	BaseDefense       int `json:"base_defense"`

	Stockpile       economy.Bundle `json:"stockpile"`
	LastFoodBalance float64        `json:"last_food_balance"`
	GrowthBonus     float64        `json:"growth_bonus"` // Medical growth bonus earned last turn
	Events          []Event        `json:"events"`       // Rolling log, newest last

	NextPopID      pops.PopID    `json:"next_pop_id"`
	NextJobID      economy.JobID `json:"next_job_id"`
	NextBuildingID buildings.ID  `json:"next_building_id"`
}

// Colony is a single settled world. It is not safe for concurrent use; the empire
// manager serializes access.
type Colony struct {
	State
	cat Catalog
	log *slog.Logger
}

// FoundParams describes a new colony.
type FoundParams struct {
	ID            ID
	Name          string
	PlanetID      uint64
	SystemID      uint64
	EmpireID      uint64
	Colonists     int
	Species       string
	Habitability  int
	MaxPopulation int // 0 uses DefaultMaxPopulation
	Turn          uint64
	Stockpile     economy.Bundle
}

// Found creates a colony with a single worker pop and the catalog's founding jobs.
func Found(p FoundParams, cat Catalog) (*Colony, error) {
	if p.Colonists < MinColonists {
		return nil, fmt.Errorf("%w: %d proposed, %d required", ErrTooFewColonists, p.Colonists, MinColonists)
	}
	maxPop := p.MaxPopulation
	if maxPop <= 0 {
		maxPop = DefaultMaxPopulation
	}
	c := &Colony{
		State: State{
			ID:                p.ID,
			Name:              p.Name,
			PlanetID:          p.PlanetID,
			SystemID:          p.SystemID,
			EmpireID:          p.EmpireID,
			Species:           p.Species,
			Status:            StatusDeveloping,
			FoundedTurn:       p.Turn,
			Morale:            60,
			Stability:         60,
			Loyalty:           60,
			Habitability:      mathx.Clamp100(p.Habitability),
			Infrastructure:    1,
			BaseMaxPopulation: max(maxPop, p.Colonists),
			Stockpile:         p.Stockpile,
			NextPopID:         1,
			NextJobID:         1,
			NextBuildingID:    1,
		},
		cat: cat,
	}
	c.addPop(pops.Pop{
		Size:      p.Colonists,
		Species:   p.Species,
		Stratum:   pops.Worker,
		Happiness: 60,
		Education: 30,
		Health:    80,
	})
	for _, js := range cat.FoundingJobs() {
		if err := c.addJob(js, 0, 1); err != nil {
			return nil, err
		}
	}
	c.Type = TypeFor(c.Population())
	c.ReassignJobs()
	return c, nil
}

// SetLogger sets the colony's logger. nil restores slog.Default.
func (c *Colony) SetLogger(l *slog.Logger) { c.log = l }

func (c *Colony) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}

// Population is the total size of all pops.
func (c *Colony) Population() int {
	n := 0
	for _, p := range c.Pops {
		n += p.Size
	}
	return n
}

// MaxPopulation is the base capacity plus active housing bonuses.
func (c *Colony) MaxPopulation() int {
	n := c.BaseMaxPopulation
	for _, b := range c.Buildings {
		n += b.EffectiveBonuses().Population
	}
	return n
}

// DefenseLevel is the base defense plus active building bonuses.
func (c *Colony) DefenseLevel() int {
	n := c.BaseDefense
	for _, b := range c.Buildings {
		n += b.EffectiveBonuses().Defense
	}
	return n
}

// BuildingSlots is the number of buildings the colony can hold.
func (c *Colony) BuildingSlots() int {
	return BaseBuildingSlots + SlotsPerInfra*c.Infrastructure
}

// Employed is the total number of filled job slots.
func (c *Colony) Employed() int {
	n := 0
	for _, j := range c.Jobs {
		n += j.Filled()
	}
	return n
}

// HasBuilding reports whether a non-destroyed building of type t exists.
func (c *Colony) HasBuilding(t buildings.Type) bool {
	for _, b := range c.Buildings {
		if b.Type == t && !b.Destroyed() {
			return true
		}
	}
	return false
}

// HasActiveCategory reports whether an active building of the category exists.
func (c *Colony) HasActiveCategory(cat buildings.Category) bool {
	for _, b := range c.Buildings {
		if b.Category == cat && b.Active && !b.Destroyed() {
			return true
		}
	}
	return false
}

// Pop returns a copy of the pop with the given id.
func (c *Colony) Pop(id pops.PopID) (pops.Pop, bool) {
	if p := c.findPop(id); p != nil {
		return *p, true
	}
	return pops.Pop{}, false
}

// Building returns a copy of the building with the given id.
func (c *Colony) Building(id buildings.ID) (buildings.Building, bool) {
	if b := c.findBuilding(id); b != nil {
		return *b, true
	}
	return buildings.Building{}, false
}

// Profile returns the species profile for a pop.
func (c *Colony) Profile(p *pops.Pop) pops.SpeciesProfile {
	return c.cat.SpeciesProfile(p.Species)
}

// Catalog returns the reference data the colony was built with.
func (c *Colony) Catalog() Catalog { return c.cat }

func (c *Colony) findPop(id pops.PopID) *pops.Pop {
	i, ok := slices.BinarySearchFunc(c.Pops, id, func(p *pops.Pop, id pops.PopID) int {
		return cmpID(p.ID, id)
	})
	if !ok {
		return nil
	}
	return c.Pops[i]
}

func (c *Colony) findBuilding(id buildings.ID) *buildings.Building {
	for _, b := range c.Buildings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// addPop appends a pop under a fresh id. IDs grow monotonically so Pops stays sorted.
func (c *Colony) addPop(p pops.Pop) *pops.Pop {
	p.ID = c.NextPopID
	c.NextPopID++
	p.Normalize()
	np := &p
	c.Pops = append(c.Pops, np)
	return np
}

func (c *Colony) addJob(js buildings.JobSlot, building buildings.ID, scale float64) error {
	tmpl, ok := c.cat.Job(js.Job)
	if !ok {
		return fmt.Errorf("job template %q: %w", js.Job, ErrInvalidState)
	}
	j := economy.NewJob(c.NextJobID, tmpl, js.Slots, uint32(building))
	c.NextJobID++
	if scale != 1 {
		j.SetSlots(int(float64(js.Slots) * scale))
	}
	c.Jobs = append(c.Jobs, j)
	if b := c.findBuilding(building); b != nil {
		b.Jobs = append(b.Jobs, j.ID)
	}
	return nil
}

// prunePops drops empty pops and any assignments that referenced them.
func (c *Colony) prunePops() {
	var gone []pops.PopID
	c.Pops = slices.DeleteFunc(c.Pops, func(p *pops.Pop) bool {
		if p.Size <= 0 {
			gone = append(gone, p.ID)
			return true
		}
		return false
	})
	for _, id := range gone {
		for _, j := range c.Jobs {
			delete(j.Assigned, id)
		}
	}
}

// removeBuilding deletes a building and the jobs it provided.
func (c *Colony) removeBuilding(id buildings.ID) {
	c.Buildings = slices.DeleteFunc(c.Buildings, func(b *buildings.Building) bool { return b.ID == id })
	c.Jobs = slices.DeleteFunc(c.Jobs, func(j *economy.Job) bool { return j.Building == uint32(id) })
}

// pruneDestroyed removes every destroyed building, returning their ids.
func (c *Colony) pruneDestroyed() []buildings.ID {
	var ids []buildings.ID
	for _, b := range c.Buildings {
		if b.Destroyed() {
			ids = append(ids, b.ID)
		}
	}
	for _, id := range ids {
		c.removeBuilding(id)
	}
	return ids
}

func (c *Colony) record(e Event) {
	c.Events = append(c.Events, e)
	if over := len(c.Events) - MaxRecentEvents; over > 0 {
		c.Events = slices.Delete(c.Events, 0, over)
	}
}

func (c *Colony) clampStats() {
	c.Morale = mathx.Clamp100(c.Morale)
	c.Stability = mathx.Clamp100(c.Stability)
	c.Loyalty = mathx.Clamp100(c.Loyalty)
}

func cmpID[T ~uint32 | ~uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
