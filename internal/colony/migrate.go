package colony

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/talgya/starcolony/internal/mathx"
	"github.com/talgya/starcolony/internal/pops"
)

// Costs of a forced migration to the migrants and to the colony they leave.
const (
	ForcedMigrationHappiness = 15
	ForcedMigrationStability = 3
)

// migrationOrder ranks pops for departure: least happy first, then lowest id.
func (c *Colony) migrationOrder() []*pops.Pop {
	order := slices.Clone(c.Pops)
	slices.SortStableFunc(order, func(a, b *pops.Pop) int {
		if r := cmp.Compare(a.Happiness, b.Happiness); r != 0 {
			return r
		}
		return cmpID(a.ID, b.ID)
	})
	return order
}

// PlanMigrants previews which people would leave if count emigrated, without changing
// the colony. Returned pops carry their source ids.
func (c *Colony) PlanMigrants(count int) []pops.Pop {
	var out []pops.Pop
	for _, p := range c.migrationOrder() {
		if count <= 0 {
			break
		}
		if p.Size == 0 {
			continue
		}
		n := min(count, p.Size)
		cp := *p
		cp.Size = n
		out = append(out, cp)
		count -= n
	}
	return out
}

// DetachPops removes count people, least happy first, and returns them as new pops
// without ids. Callers check population floors beforehand.
func (c *Colony) DetachPops(turn uint64, count int) []pops.Pop {
	var out []pops.Pop
	for _, p := range c.migrationOrder() {
		if count <= 0 {
			break
		}
		n := min(count, p.Size)
		if split, ok := p.Split(n); ok {
			out = append(out, split)
			count -= n
		}
	}
	c.prunePops()
	c.ReassignJobs()
	moved := 0
	for _, p := range out {
		moved += p.Size
	}
	if moved > 0 {
		c.record(Event{Turn: turn, Kind: EventMigration, Description: fmt.Sprintf("%d colonists left %s", moved, c.Name)})
	}
	return out
}

// AdmitPops settles migrants as refugees from origin and reassigns jobs.
func (c *Colony) AdmitPops(turn uint64, in []pops.Pop, origin ID) {
	arrived := 0
	for _, p := range in {
		if p.Size <= 0 {
			continue
		}
		p.Refugee = true
		p.Integration = 0
		p.Origin = uint64(origin)
		c.addPop(p)
		arrived += p.Size
	}
	if arrived == 0 {
		return
	}
	c.ReassignJobs()
	c.record(Event{Turn: turn, Kind: EventMigration, Description: fmt.Sprintf("%d refugees arrived on %s", arrived, c.Name)})
}

// PenalizeForcedDeparture applies the source-side cost of a forced migration.
func (c *Colony) PenalizeForcedDeparture() {
	c.Stability = mathx.Clamp100(c.Stability - ForcedMigrationStability)
}
