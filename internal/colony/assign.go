package colony

import (
	"cmp"
	"slices"

	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/pops"
)

type candidate struct {
	pop  *pops.Pop
	left int
}

// ReassignJobs recomputes every assignment from scratch and returns the unemployed count.
// Pops rank by education then happiness; jobs fill by priority then base output. Each job
// repeatedly takes the best remaining eligible pop. Jobs of inactive buildings stay empty.
func (c *Colony) ReassignJobs() int {
	for _, j := range c.Jobs {
		j.ClearWorkers()
	}

	pool := make([]*candidate, 0, len(c.Pops))
	for _, p := range c.Pops {
		if p.Size > 0 {
			pool = append(pool, &candidate{pop: p, left: p.Size})
		}
	}
	slices.SortStableFunc(pool, func(a, b *candidate) int {
		if r := cmp.Compare(b.pop.Education, a.pop.Education); r != 0 {
			return r
		}
		if r := cmp.Compare(b.pop.Happiness, a.pop.Happiness); r != 0 {
			return r
		}
		return cmpID(a.pop.ID, b.pop.ID)
	})

	for _, j := range c.staffableJobs() {
		for j.Remaining() > 0 {
			i := slices.IndexFunc(pool, func(cd *candidate) bool { return j.Eligible(cd.pop) })
			if i < 0 {
				break
			}
			cd := pool[i]
			cd.left -= j.AssignWorkers(cd.pop.ID, cd.left)
			if cd.left == 0 {
				pool = slices.Delete(pool, i, i+1)
			}
		}
	}

	unemployed := 0
	for _, cd := range pool {
		unemployed += cd.left
	}
	return unemployed
}

// staffableJobs returns jobs in fill order, skipping those of inactive buildings.
func (c *Colony) staffableJobs() []*economy.Job {
	inactive := make(map[uint32]bool)
	for _, b := range c.Buildings {
		if !b.Active || b.Destroyed() {
			inactive[uint32(b.ID)] = true
		}
	}
	jobs := make([]*economy.Job, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		if j.Building != 0 && inactive[j.Building] {
			continue
		}
		jobs = append(jobs, j)
	}
	slices.SortStableFunc(jobs, func(a, b *economy.Job) int {
		if r := cmp.Compare(b.Priority, a.Priority); r != 0 {
			return r
		}
		if r := cmp.Compare(b.BaseOutput, a.BaseOutput); r != 0 {
			return r
		}
		return cmpID(a.ID, b.ID)
	})
	return jobs
}

// workerModifier is the assignment-weighted mean modifier of a job's workers. Research
// jobs use the research modifier, everything else productivity.
func (c *Colony) workerModifier(j *economy.Job) float64 {
	filled := j.Filled()
	if filled == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range c.Pops {
		n := j.Assigned[p.ID]
		if n == 0 {
			continue
		}
		prof := c.Profile(p)
		if j.Resource == economy.Research {
			sum += float64(n) * p.ResearchModifier(prof)
		} else {
			sum += float64(n) * p.ProductivityModifier(prof)
		}
	}
	return sum / float64(filled)
}

// produce runs the production stage and returns gross output plus the job effects.
func (c *Colony) produce() (economy.Bundle, economy.Effects) {
	var out economy.Bundle
	var fx economy.Effects
	for _, j := range c.Jobs {
		if j.Filled() == 0 {
			continue
		}
		out = out.Plus(j.CalculateOutput(c.workerModifier(j)))
		fx = fx.Plus(j.SpecialEffects())
	}

	for _, b := range c.Buildings {
		bonus := b.EffectiveBonuses()
		for _, r := range []economy.Resource{economy.Credits, economy.Research, economy.Production, economy.Food} {
			if pct := bonus.Percent(r); pct != 0 {
				out.Scale(r, 1+pct)
			}
		}
	}

	out.Scale(economy.Production, 1+fx.Production)

	moraleF := 0.5 + float64(c.Morale)/100
	out.Scale(economy.Credits, moraleF)
	out.Scale(economy.Research, moraleF)

	if c.Stability < 30 {
		f := float64(c.Stability) / 30
		out.Scale(economy.Credits, f)
		out.Scale(economy.Production, f)
	}
	return out, fx
}
