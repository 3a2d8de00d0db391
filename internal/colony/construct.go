package colony

import (
	"fmt"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/mathx"
)

// ConstructBuilding builds a level-1 building of type t for cost credits. A negative cost
// charges the catalog price. On success the building's jobs are registered, its flat
// morale and stability bonuses applied once, and jobs reassigned. On failure the colony
// is unchanged.
func (c *Colony) ConstructBuilding(turn uint64, t buildings.Type, cost float64) (buildings.Building, error) {
	if c.Status == StatusAbandoned {
		return buildings.Building{}, ErrAbandoned
	}
	def, ok := c.cat.Building(t)
	if !ok {
		return buildings.Building{}, fmt.Errorf("%w: %q", buildings.ErrUnknownType, t)
	}
	if cost < 0 {
		cost = def.Cost
	}
	if def.Unique && c.HasBuilding(t) {
		return buildings.Building{}, fmt.Errorf("%w: %s", ErrUniqueBuilding, t)
	}
	if err := def.CanBuild(c.Infrastructure, c.HasBuilding); err != nil {
		return buildings.Building{}, err
	}
	if len(c.Buildings) >= c.BuildingSlots() {
		return buildings.Building{}, fmt.Errorf("%w: %d of %d used", ErrNoBuildingSlots, len(c.Buildings), c.BuildingSlots())
	}
	if cost > c.Stockpile.Credits {
		return buildings.Building{}, fmt.Errorf("%w: need %.0f, have %.0f", ErrInsufficientFunds, cost, c.Stockpile.Credits)
	}
	for _, js := range def.Jobs {
		if _, ok := c.cat.Job(js.Job); !ok {
			return buildings.Building{}, fmt.Errorf("%s: job template %q: %w", t, js.Job, ErrInvalidState)
		}
	}

	b, err := buildings.Create(c.cat, c.NextBuildingID, t)
	if err != nil {
		return buildings.Building{}, err
	}
	c.NextBuildingID++
	c.Stockpile.Credits -= cost
	c.Buildings = append(c.Buildings, b)
	for _, js := range b.JobSlots {
		// Templates were checked above.
		_ = c.addJob(js, b.ID, 1)
	}
	c.Morale = mathx.Clamp100(c.Morale + b.Bonuses.Morale)
	c.Stability = mathx.Clamp100(c.Stability + b.Bonuses.Stability)
	c.ReassignJobs()
	c.record(Event{Turn: turn, Kind: EventConstruction, Description: fmt.Sprintf("%s completed on %s", b.Name, c.Name)})
	return *b, nil
}

// UpgradeBuilding raises a building one level and rescales its job slots.
func (c *Colony) UpgradeBuilding(id buildings.ID) error {
	b := c.findBuilding(id)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrBuildingNotFound, id)
	}
	if err := b.Upgrade(); err != nil {
		return err
	}
	c.rescaleJobs(b)
	c.ReassignJobs()
	return nil
}

// DowngradeBuilding lowers a building one level. Shrinking jobs lay off workers.
func (c *Colony) DowngradeBuilding(id buildings.ID) error {
	b := c.findBuilding(id)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrBuildingNotFound, id)
	}
	if err := b.Downgrade(); err != nil {
		return err
	}
	c.rescaleJobs(b)
	c.ReassignJobs()
	return nil
}

// RepairBuilding restores building health. Reactivated buildings are staffed immediately.
func (c *Colony) RepairBuilding(id buildings.ID, amount int) error {
	b := c.findBuilding(id)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrBuildingNotFound, id)
	}
	wasActive := b.Active
	if err := b.Repair(amount); err != nil {
		return err
	}
	if b.Active != wasActive {
		c.ReassignJobs()
	}
	return nil
}

// DemolishBuilding removes a building and its jobs.
func (c *Colony) DemolishBuilding(id buildings.ID) error {
	if c.findBuilding(id) == nil {
		return fmt.Errorf("%w: %d", ErrBuildingNotFound, id)
	}
	c.removeBuilding(id)
	c.ReassignJobs()
	return nil
}

// InvestInfrastructure spends stockpiled production to raise infrastructure one level.
// The price is InfrastructureCost × the target level.
func (c *Colony) InvestInfrastructure(turn uint64) error {
	if c.Infrastructure >= MaxInfrastructure {
		return ErrMaxInfrastructure
	}
	cost := float64(InfrastructureCost * (c.Infrastructure + 1))
	if c.Stockpile.Production < cost {
		return fmt.Errorf("%w: need %.0f, have %.0f", ErrInsufficientProduction, cost, c.Stockpile.Production)
	}
	c.Stockpile.Production -= cost
	c.Infrastructure++
	c.record(Event{Turn: turn, Kind: EventInfrastructure, Description: fmt.Sprintf("%s infrastructure reached level %d", c.Name, c.Infrastructure)})
	return nil
}

func (c *Colony) rescaleJobs(b *buildings.Building) {
	for _, j := range c.Jobs {
		if j.Building == uint32(b.ID) {
			j.SetSlots(b.ScaledSlots(j.BaseSlots))
		}
	}
}
