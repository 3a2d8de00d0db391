package colony

import (
	"fmt"
	"slices"

	"github.com/talgya/starcolony/internal/buildings"
)

// DamageReport summarizes an attack on a colony.
type DamageReport struct {
	Effective  int            `json:"effective"` // Damage after defense mitigation
	Casualties int            `json:"casualties"`
	Damaged    []buildings.ID `json:"damaged,omitempty"`
	Destroyed  []buildings.ID `json:"destroyed,omitempty"`
}

// TakeDamage applies combat damage. Defense mitigates by 100/(100+defense). Orbital
// bombardment hits every building and kills amount% of the population; ground assaults
// kill half as many and hit defense buildings first, or every building at half strength
// when there are none. Jobs are reassigned afterwards; the turn pipeline is not run.
func (c *Colony) TakeDamage(turn uint64, amount int, orbital bool) DamageReport {
	var rep DamageReport
	if amount <= 0 || c.Status == StatusAbandoned {
		return rep
	}
	rep.Effective = amount * 100 / (100 + c.DefenseLevel())
	pop := c.Population()

	if orbital {
		rep.Casualties = rep.Effective * pop / 100
		for _, b := range c.Buildings {
			b.Damage(rep.Effective)
			rep.Damaged = append(rep.Damaged, b.ID)
		}
	} else {
		rep.Casualties = rep.Effective * pop / 200
		targets := slices.DeleteFunc(slices.Clone(c.Buildings), func(b *buildings.Building) bool {
			return b.Category != buildings.CategoryDefense
		})
		dmg := rep.Effective
		if len(targets) == 0 {
			targets = c.Buildings
			dmg = rep.Effective / 2
		}
		for _, b := range targets {
			b.Damage(dmg)
			rep.Damaged = append(rep.Damaged, b.ID)
		}
	}
	rep.Casualties = min(rep.Casualties, pop)
	c.distributeCasualties(rep.Casualties)

	rep.Destroyed = c.pruneDestroyed()
	c.prunePops()
	c.ReassignJobs()

	kind := "Ground assault"
	if orbital {
		kind = "Orbital bombardment"
	}
	c.record(Event{
		Turn:        turn,
		Kind:        EventAttack,
		Severity:    rep.Effective,
		Description: fmt.Sprintf("%s on %s: %d casualties, %d buildings destroyed", kind, c.Name, rep.Casualties, len(rep.Destroyed)),
	})
	return rep
}

// distributeCasualties spreads losses over pops in proportion to size.
func (c *Colony) distributeCasualties(n int) {
	for i, lost := range c.lossShares(n) {
		c.Pops[i].TakeCasualties(lost)
	}
}

// lossShares splits n people over the pops in proportion to size. Rounding leftovers
// fall on the largest pops, lowest id first. Nil when there is nothing to split.
func (c *Colony) lossShares(n int) []int {
	pop := c.Population()
	if n <= 0 || pop == 0 {
		return nil
	}
	losses := make([]int, len(c.Pops))
	assigned := 0
	for i, p := range c.Pops {
		losses[i] = n * p.Size / pop
		assigned += losses[i]
	}
	order := make([]int, len(c.Pops))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return c.Pops[b].Size - c.Pops[a].Size })
	for left := n - assigned; left > 0; {
		progressed := false
		for _, i := range order {
			if left == 0 {
				break
			}
			if losses[i] < c.Pops[i].Size {
				losses[i]++
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return losses
}
