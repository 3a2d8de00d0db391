package colony

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/mathx"
	"github.com/talgya/starcolony/internal/pops"
)

// Snapshot returns a deep copy of the colony state.
func (c *Colony) Snapshot() State {
	s := c.State
	s.Pops = make([]*pops.Pop, len(c.Pops))
	for i, p := range c.Pops {
		cp := *p
		cp.Traits = slices.Clone(p.Traits)
		s.Pops[i] = &cp
	}
	s.Buildings = make([]*buildings.Building, len(c.Buildings))
	for i, b := range c.Buildings {
		cp := *b
		cp.JobSlots = slices.Clone(b.JobSlots)
		cp.Jobs = slices.Clone(b.Jobs)
		s.Buildings[i] = &cp
	}
	s.Jobs = make([]*economy.Job, len(c.Jobs))
	for i, j := range c.Jobs {
		cp := *j
		cp.Assigned = make(map[pops.PopID]int, len(j.Assigned))
		for k, v := range j.Assigned {
			cp.Assigned[k] = v
		}
		s.Jobs[i] = &cp
	}
	s.Events = slices.Clone(c.Events)
	return s
}

// MarshalJSON encodes the colony as its state.
func (c *Colony) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// Restore rebuilds a colony from a snapshot. Bounded values are clamped, pops sorted,
// and assignments that break slot or population limits are recomputed.
func Restore(s State, cat Catalog) (*Colony, error) {
	c := &Colony{State: (&Colony{State: s}).Snapshot(), cat: cat}

	slices.SortFunc(c.Pops, func(a, b *pops.Pop) int { return cmpID(a.ID, b.ID) })
	for i, p := range c.Pops {
		if i > 0 && c.Pops[i-1].ID == p.ID {
			return nil, fmt.Errorf("%w: duplicate pop id %d", ErrInvalidState, p.ID)
		}
		if p.ID >= c.NextPopID {
			c.NextPopID = p.ID + 1
		}
		p.Normalize()
	}
	for _, b := range c.Buildings {
		if _, ok := cat.Building(b.Type); !ok {
			return nil, fmt.Errorf("%w: %q", buildings.ErrUnknownType, b.Type)
		}
		if b.ID >= c.NextBuildingID {
			c.NextBuildingID = b.ID + 1
		}
		b.Level = mathx.Clamp(b.Level, 1, max(b.MaxLevel, 1))
		b.Health = mathx.Clamp(b.Health, 0, buildings.MaxHealth)
		b.Active = b.Health >= buildings.ActiveThreshold
	}
	for _, j := range c.Jobs {
		if j.ID >= c.NextJobID {
			c.NextJobID = j.ID + 1
		}
		if j.Assigned == nil {
			j.Assigned = make(map[pops.PopID]int)
		}
	}
	c.NextPopID = max(c.NextPopID, 1)
	c.NextJobID = max(c.NextJobID, 1)
	c.NextBuildingID = max(c.NextBuildingID, 1)
	c.Habitability = mathx.Clamp100(c.Habitability)
	c.Infrastructure = mathx.Clamp(c.Infrastructure, 0, MaxInfrastructure)
	c.clampStats()
	c.pruneDestroyed()
	c.prunePops()
	if !c.assignmentsValid() {
		c.ReassignJobs()
	}
	return c, nil
}

func (c *Colony) assignmentsValid() bool {
	total := 0
	sizes := make(map[pops.PopID]int, len(c.Pops))
	for _, p := range c.Pops {
		sizes[p.ID] = p.Size
	}
	used := make(map[pops.PopID]int)
	for _, j := range c.Jobs {
		f := j.Filled()
		if f > j.TotalSlots {
			return false
		}
		total += f
		for id, n := range j.Assigned {
			if _, ok := sizes[id]; !ok || n < 0 {
				return false
			}
			used[id] += n
		}
	}
	for id, n := range used {
		if n > sizes[id] {
			return false
		}
	}
	return total <= c.Population()
}

// CheckInvariants reports the first violated colony invariant, or nil.
func (c *Colony) CheckInvariants() error {
	for _, s := range []struct {
		name string
		v    int
	}{{"morale", c.Morale}, {"stability", c.Stability}, {"loyalty", c.Loyalty}} {
		if s.v < 0 || s.v > 100 {
			return fmt.Errorf("%s %d out of range", s.name, s.v)
		}
	}
	for _, p := range c.Pops {
		if p.Size < 0 {
			return fmt.Errorf("pop %d has negative size", p.ID)
		}
		if p.Health < 0 || p.Health > 100 {
			return fmt.Errorf("pop %d health %d out of range", p.ID, p.Health)
		}
	}
	for _, b := range c.Buildings {
		if b.Health < 0 || b.Health > buildings.MaxHealth {
			return fmt.Errorf("building %d health %d out of range", b.ID, b.Health)
		}
	}
	if !c.assignmentsValid() {
		return fmt.Errorf("job assignments exceed slots or population")
	}
	return nil
}
