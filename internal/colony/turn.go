package colony

import (
	"fmt"
	"math"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/entropy"
	"github.com/talgya/starcolony/internal/mathx"
)

// TurnResult is the outcome of one colony turn.
type TurnResult struct {
	ColonyID      ID             `json:"colony_id"`
	Turn          uint64         `json:"turn"`
	Production    economy.Bundle `json:"production"`
	FoodBalance   float64        `json:"food_balance"`
	NewMorale     int            `json:"new_morale"`
	NewStability  int            `json:"new_stability"`
	NewLoyalty    int            `json:"new_loyalty"`
	BonusResearch float64        `json:"bonus_research"`
	Upkeep        float64        `json:"upkeep"`
	Growth        int            `json:"growth"`
	Population    int            `json:"population"`
	Unemployed    int            `json:"unemployed"`
	Type          Type           `json:"type"`
	Status        Status         `json:"status"`
	Events        []Event        `json:"events"`

	EnteredRebellion bool `json:"entered_rebellion"`
	Famine           bool `json:"famine"`
	Abandoned        bool `json:"abandoned"`
}

// Random event odds.
const (
	diseaseBaseChance   = 0.02
	disasterChance      = 0.01
	festivalChance      = 0.05
	discoveryChance     = 0.03
	disasterDamage      = 30
	festivalMorale      = 5
	diseaseMoralePerSev = 5
	diseaseHealthPerSev = 5
)

type turnState struct {
	turn   uint64
	result TurnResult
}

func (ts *turnState) emit(c *Colony, kind EventKind, severity int, format string, args ...any) {
	e := Event{Turn: ts.turn, Kind: kind, Description: fmt.Sprintf(format, args...), Severity: severity}
	ts.result.Events = append(ts.result.Events, e)
	c.record(e)
}

// GrowthRate is the per-pop growth rate before species and medical modifiers.
func (c *Colony) GrowthRate() float64 {
	moraleF := 1.0
	switch {
	case c.Morale > 70:
		moraleF = 1.2
	case c.Morale < 30:
		moraleF = 0.5
	}
	foodF := 1.0
	switch {
	case c.LastFoodBalance > 0:
		foodF = 1.1
	case c.LastFoodBalance < 0:
		foodF = 0.3
	}
	return 0.02 * float64(c.Habitability) / 100 * moraleF * foodF * (1 + float64(c.Infrastructure)*0.05)
}

// ProcessTurn runs the full colony pipeline for one turn. Stages run in a fixed order:
// overcrowding, growth, job assignment, production, food, morale, stability, random events, and
// reclassification. Events are drawn from a stream seeded by (turn, colony id) only.
func (c *Colony) ProcessTurn(turn uint64) TurnResult {
	ts := &turnState{turn: turn, result: TurnResult{ColonyID: c.ID, Turn: turn}}
	if c.Status == StatusAbandoned {
		return c.finish(ts)
	}
	c.Age++

	c.shedOverflow(ts)
	ts.result.Growth = c.grow()

	unemployed := c.ReassignJobs()
	ts.result.Unemployed = unemployed
	pop := c.Population()
	unemployment := 0.0
	if pop > 0 {
		unemployment = float64(unemployed) / float64(pop)
	}
	if unemployment > 0.2 {
		c.Stability -= 5
		c.Morale -= 3
		c.clampStats()
		ts.emit(c, EventUnemployment, 0, "%d of %d colonists on %s are out of work", unemployed, pop, c.Name)
	}

	production, fx := c.produce()
	ts.result.Production = production
	c.Stockpile = c.Stockpile.Plus(production)
	c.payUpkeep(ts)

	consumption := float64(pop) / 10
	balance := production.Food - consumption
	c.Stockpile.Food = math.Max(c.Stockpile.Food-consumption, 0)
	c.LastFoodBalance = balance
	ts.result.FoodBalance = balance
	if balance < 0 {
		c.Morale -= 10
		c.Stability -= 5
		c.clampStats()
		ts.result.Famine = true
		ts.emit(c, EventFamine, 0, "Famine on %s: %.1f food short", c.Name, -balance)
	}

	c.updateMorale(unemployment, fx)
	c.updateStability(ts, fx)
	c.updateLoyalty()
	c.applyPopEffects(ts, fx)

	c.rollEvents(ts)
	if c.shedOverflow(ts) > 0 {
		c.ReassignJobs()
	}

	c.prunePops()
	c.Type = TypeFor(c.Population())
	prev := c.Status
	c.Status = c.nextStatus()
	if c.Status == StatusAbandoned && prev != StatusAbandoned {
		ts.emit(c, EventAbandoned, 0, "%s has no one left", c.Name)
		c.logger().Info("colony abandoned", "colony", c.ID, "turn", turn)
	}
	return c.finish(ts)
}

func (c *Colony) finish(ts *turnState) TurnResult {
	r := &ts.result
	r.NewMorale = c.Morale
	r.NewStability = c.Stability
	r.NewLoyalty = c.Loyalty
	r.Population = c.Population()
	r.Type = c.Type
	r.Status = c.Status
	r.Abandoned = c.Status == StatusAbandoned
	return *r
}

func (c *Colony) grow() int {
	room := c.MaxPopulation() - c.Population()
	rate := c.GrowthRate() * (1 + c.GrowthBonus)
	grown := 0
	for _, p := range c.Pops {
		n := p.GrowAtRate(rate*c.Profile(p).Growth, room-grown)
		grown += n
	}
	return grown
}

// shedOverflow sends away everyone above MaxPopulation, which shrinks when housing is
// demolished, downgraded or destroyed. Returns how many left.
func (c *Colony) shedOverflow(ts *turnState) int {
	over := c.Population() - c.MaxPopulation()
	if over <= 0 {
		return 0
	}
	left := 0
	for i, n := range c.lossShares(over) {
		n = min(n, c.Pops[i].Size)
		c.Pops[i].Size -= n
		c.Pops[i].GrowthProgress = 0
		left += n
	}
	ts.emit(c, EventOvercrowding, 0, "%d colonists left overcrowded %s", left, c.Name)
	return left
}

func (c *Colony) payUpkeep(ts *turnState) {
	upkeep := 0.0
	for _, b := range c.Buildings {
		if !b.Destroyed() {
			upkeep += b.Maintenance * float64(b.Level)
		}
	}
	ts.result.Upkeep = upkeep
	c.Stockpile.Credits -= upkeep
	if c.Stockpile.Credits < 0 {
		short := -c.Stockpile.Credits
		c.Stockpile.Credits = 0
		ts.emit(c, EventUpkeepShortfall, 0, "%s could not cover %.1f credits of upkeep", c.Name, short)
	}
}

func (c *Colony) updateMorale(unemployment float64, fx economy.Effects) {
	m := mathx.DriftToward(c.Morale, 50, 1)
	switch {
	case c.Habitability < 50:
		m -= 2
	case c.Habitability > 80:
		m++
	}
	switch {
	case unemployment > 0.3:
		m -= 5
	case unemployment < 0.1:
		m++
	}
	if c.HasActiveCategory(buildings.CategoryEntertainment) {
		m += 3
	}
	m += int(math.Round(fx.Morale))
	c.Morale = mathx.Clamp100(m)
}

func (c *Colony) updateStability(ts *turnState, fx economy.Effects) {
	s := mathx.DriftToward(c.Stability, 50, 1)
	switch {
	case c.Morale < 20:
		s -= 3
	case c.Morale > 80:
		s++
	}
	if c.Loyalty < 30 {
		s -= 5
	}
	s += c.DefenseLevel() / 2
	s += int(math.Round(fx.Stability))
	c.Stability = mathx.Clamp100(s)

	if c.Stability < RebellionStability && c.Status != StatusRebellion && c.Population() > 0 {
		c.Status = StatusRebellion
		ts.result.EnteredRebellion = true
		ts.emit(c, EventRebellion, 0, "%s has risen in rebellion", c.Name)
		c.logger().Warn("colony rebellion", "colony", c.ID, "stability", c.Stability)
	}
}

// updateLoyalty moves loyalty one point toward 50 plus the pops' stability contributions.
func (c *Colony) updateLoyalty() {
	target := 50
	for _, p := range c.Pops {
		target += p.StabilityContribution()
	}
	c.Loyalty = mathx.Clamp100(mathx.DriftToward(c.Loyalty, mathx.Clamp100(target), 1))
}

// applyPopEffects spreads job health and education effects over every pop, then handles
// social mobility and refugee integration.
func (c *Colony) applyPopEffects(ts *turnState, fx economy.Effects) {
	health := int(math.Round(fx.Health))
	edu := int(math.Round(fx.Education))
	c.GrowthBonus = fx.Growth

	promoted, demoted, integrated := 0, 0, 0
	for _, p := range c.Pops {
		p.AdjustHealth(health)
		p.AdjustEducation(edu)
		switch {
		case p.WantsDemotion():
			p.DemoteStratum()
			demoted += p.Size
		case p.WantsPromotion():
			p.PromoteStratum()
			promoted += p.Size
		}
		if p.AdvanceIntegration() {
			integrated += p.Size
		}
	}
	if promoted > 0 {
		ts.emit(c, EventPromotion, 0, "%d colonists on %s rose a stratum", promoted, c.Name)
	}
	if demoted > 0 {
		ts.emit(c, EventDemotion, 0, "%d colonists on %s fell a stratum", demoted, c.Name)
	}
	if integrated > 0 {
		ts.emit(c, EventRefugeesIntegrated, 0, "%d refugees on %s have integrated", integrated, c.Name)
	}
}

// eventRolls holds one turn's random draws, taken before any event applies.
type eventRolls struct {
	disease    bool
	severity   int
	disaster   bool
	pick       uint64 // Reduced modulo the building count when a disaster strikes
	festival   bool
	discovered bool
	discovery  float64
}

// drawEvents takes every roll in a fixed order whether or not its condition holds, so
// one event's outcome never shifts another's.
func (c *Colony) drawEvents(turn uint64) eventRolls {
	s := entropy.ForColonyTurn(turn, uint64(c.ID))
	return eventRolls{
		disease:    s.Chance(diseaseBaseChance * (1 + float64(100-c.Habitability)/100)),
		severity:   s.IntRange(1, 3),
		disaster:   s.Chance(disasterChance),
		pick:       s.Uint64(),
		festival:   s.Chance(festivalChance),
		discovered: s.Chance(discoveryChance),
		discovery:  float64(s.IntRange(50, 149)),
	}
}

func (c *Colony) rollEvents(ts *turnState) {
	r := c.drawEvents(ts.turn)
	severity := r.severity

	if r.disease {
		c.Morale -= diseaseMoralePerSev * severity
		for _, p := range c.Pops {
			p.AdjustHealth(-diseaseHealthPerSev * severity)
		}
		ts.emit(c, EventDisease, severity, "Disease outbreak on %s (severity %d)", c.Name, severity)
	}

	if r.disaster && len(c.Buildings) > 0 {
		b := c.Buildings[r.pick%uint64(len(c.Buildings))]
		destroyed := b.Damage(disasterDamage)
		ts.emit(c, EventDisaster, disasterDamage, "Disaster strikes the %s on %s", b.Name, c.Name)
		if destroyed {
			c.removeBuilding(b.ID)
			ts.emit(c, EventBuildingDestroyed, 0, "The %s on %s was destroyed", b.Name, c.Name)
		}
		c.ReassignJobs()
	}

	if c.Morale > 60 && r.festival {
		c.Morale += festivalMorale
		ts.emit(c, EventFestival, 0, "A festival lifts spirits on %s", c.Name)
	}

	if c.HasActiveCategory(buildings.CategoryResearch) && r.discovered {
		c.Stockpile.Research += r.discovery
		ts.result.BonusResearch = r.discovery
		ts.emit(c, EventDiscovery, 0, "Scientists on %s made a discovery worth %.0f research", c.Name, r.discovery)
	}
	c.clampStats()
}
