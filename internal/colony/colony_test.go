package colony

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/catalog"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/pops"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func newColony(t *testing.T, colonists int) *Colony {
	t.Helper()
	c, err := Found(FoundParams{
		ID:           42,
		Name:         "Kepler Station",
		PlanetID:     7,
		SystemID:     3,
		EmpireID:     1,
		Colonists:    colonists,
		Species:      "human",
		Habitability: 70,
		Turn:         1,
		Stockpile:    economy.Bundle{Credits: 5000, Production: 1000},
	}, testCatalog(t))
	if err != nil {
		t.Fatalf("found: %v", err)
	}
	return c
}

func hasEvent(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestFoundRequiresTenColonists(t *testing.T) {
	cat := testCatalog(t)
	_, err := Found(FoundParams{ID: 1, Name: "Too Small", Colonists: 9, Species: "human", Habitability: 50}, cat)
	if !errors.Is(err, ErrTooFewColonists) {
		t.Fatalf("err=%v want ErrTooFewColonists", err)
	}
	c, err := Found(FoundParams{ID: 1, Name: "Just Enough", Colonists: 10, Species: "human", Habitability: 50}, cat)
	if err != nil {
		t.Fatalf("found: %v", err)
	}
	if c.Population() < 10 {
		t.Fatalf("population=%d", c.Population())
	}
	if c.Status != StatusDeveloping || c.Type != TypeOutpost {
		t.Fatalf("status=%v type=%v", c.Status, c.Type)
	}
	if len(c.Jobs) != len(cat.FoundingJobs()) {
		t.Fatalf("jobs=%d", len(c.Jobs))
	}
	if c.Employed() != 10 {
		t.Fatalf("employed=%d want 10", c.Employed())
	}
}

func TestGrowthRateExample(t *testing.T) {
	c := newColony(t, 100)
	c.Habitability = 100
	c.Morale = 80
	c.LastFoodBalance = 5
	c.Infrastructure = 3
	want := 0.02 * 1.0 * 1.2 * 1.1 * 1.15
	if got := c.GrowthRate(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("rate=%v want %v", got, want)
	}
	if grown := c.grow(); grown != 3 {
		t.Fatalf("grew %d want 3", grown)
	}
	if c.Population() != 103 {
		t.Fatalf("population=%d", c.Population())
	}
}

func TestGrowthRespectsMaxPopulation(t *testing.T) {
	c := newColony(t, 100)
	c.BaseMaxPopulation = 101
	c.Habitability = 100
	c.Morale = 90
	c.LastFoodBalance = 1
	for turn := uint64(2); turn < 30; turn++ {
		c.ProcessTurn(turn)
		if c.Population() > c.MaxPopulation() {
			t.Fatalf("turn %d: population %d above max %d", turn, c.Population(), c.MaxPopulation())
		}
	}
}

func TestProcessTurnInvariants(t *testing.T) {
	c := newColony(t, 120)
	for _, bt := range []buildings.Type{"hydroponics_farm", "research_lab", "holo_theater", "security_office", "trade_hub", "factory"} {
		if _, err := c.ConstructBuilding(1, bt, -1); err != nil {
			t.Fatalf("construct %s: %v", bt, err)
		}
	}
	for turn := uint64(2); turn < 200; turn++ {
		res := c.ProcessTurn(turn)
		if err := c.CheckInvariants(); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		if res.Population > c.MaxPopulation() {
			t.Fatalf("turn %d: population above max", turn)
		}
		if c.Employed() > c.Population() {
			t.Fatalf("turn %d: employed %d > population %d", turn, c.Employed(), c.Population())
		}
		if c.Stockpile.Credits < 0 {
			t.Fatalf("turn %d: negative credits", turn)
		}
	}
}

func TestProcessTurnDeterministic(t *testing.T) {
	a := newColony(t, 150)
	b := newColony(t, 150)
	for _, c := range []*Colony{a, b} {
		c.ConstructBuilding(1, "research_lab", -1)
		c.ConstructBuilding(1, "hydroponics_farm", -1)
	}
	for turn := uint64(2); turn < 120; turn++ {
		ra := a.ProcessTurn(turn)
		rb := b.ProcessTurn(turn)
		if !reflect.DeepEqual(ra, rb) {
			t.Fatalf("turn %d diverged:\n%+v\n%+v", turn, ra, rb)
		}
	}
	if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
		t.Fatalf("final states differ")
	}
}

func TestNoStaffedJobsNoOutput(t *testing.T) {
	c := newColony(t, 50)
	for _, bt := range []buildings.Type{"trade_hub", "research_lab", "factory"} {
		if _, err := c.ConstructBuilding(1, bt, 0); err != nil {
			t.Fatalf("construct %s: %v", bt, err)
		}
	}
	c.Jobs = nil
	res := c.ProcessTurn(2)
	p := res.Production
	if p.Credits != 0 || p.Research != 0 || p.Production != 0 {
		t.Fatalf("production with no workers: %+v", p)
	}
}

func TestLowStabilityForcesRebellion(t *testing.T) {
	c := newColony(t, 10)
	c.Stability = 5
	res := c.ProcessTurn(2)
	if c.Status != StatusRebellion || !res.EnteredRebellion || !hasEvent(res.Events, EventRebellion) {
		t.Fatalf("status=%v entered=%v events=%v", c.Status, res.EnteredRebellion, res.Events)
	}

	c.Stability = 90
	res = c.ProcessTurn(3)
	if c.Status != StatusRebellion || res.EnteredRebellion {
		t.Fatalf("rebellion should be sticky: status=%v entered=%v", c.Status, res.EnteredRebellion)
	}

	if err := c.ResolveRebellion(3, 5); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Stability < UnrestStability || c.Status == StatusRebellion {
		t.Fatalf("after resolve: stability=%d status=%v", c.Stability, c.Status)
	}
	if err := c.ResolveRebellion(3, 50); !errors.Is(err, ErrNotInRebellion) {
		t.Fatalf("err=%v", err)
	}
}

func TestStatusTable(t *testing.T) {
	tests := []struct {
		name      string
		age       int
		stability int
		infra     int
		want      Status
	}{
		{"young", 0, 60, 1, StatusDeveloping},
		{"unrest", 20, 15, 1, StatusCivilUnrest},
		{"stable", 20, 60, 1, StatusStable},
		{"flourishing", 20, 60, 5, StatusFlourishing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newColony(t, 10)
			c.Age = tt.age
			c.Stability = tt.stability
			c.Infrastructure = tt.infra
			c.ProcessTurn(2)
			if c.Status != tt.want {
				t.Fatalf("status=%v want %v (stability %d)", c.Status, tt.want, c.Stability)
			}
		})
	}
}

func TestEmptyColonyAbandoned(t *testing.T) {
	c := newColony(t, 10)
	for _, p := range c.Pops {
		p.Size = 0
	}
	res := c.ProcessTurn(2)
	if !res.Abandoned || c.Status != StatusAbandoned || res.Population != 0 {
		t.Fatalf("result=%+v", res)
	}
	c.Stability = 90
	if res := c.ProcessTurn(3); !res.Abandoned {
		t.Fatalf("abandoned should be terminal")
	}
}

func TestReassignJobsRanking(t *testing.T) {
	c := newColony(t, 10)
	scholar := c.addPop(pops.Pop{Size: 3, Species: "human", Stratum: pops.Worker, Happiness: 50, Education: 80, Health: 80})
	unemployed := c.ReassignJobs()
	if unemployed != 3 {
		t.Fatalf("unemployed=%d want 3", unemployed)
	}
	for _, j := range c.Jobs {
		if j.Name == "Farmer" && j.Assigned[scholar.ID] != 3 {
			t.Fatalf("farmer should take the most educated pop first: %v", j.Assigned)
		}
		if j.Name == "Laborer" && j.Filled() != 2 {
			t.Fatalf("laborer filled=%d", j.Filled())
		}
	}
}

func TestReassignSkipsIneligibleAndInactive(t *testing.T) {
	c := newColony(t, 30)
	b, err := c.ConstructBuilding(1, "research_lab", 0)
	if err != nil {
		t.Fatal(err)
	}
	c.ReassignJobs()
	for _, j := range c.Jobs {
		if j.Name == "Scientist" && j.Filled() != 0 {
			t.Fatalf("scientists need education 40, founders have 30")
		}
	}
	for _, p := range c.Pops {
		p.Education = 60
	}
	c.findBuilding(b.ID).Damage(60)
	c.ReassignJobs()
	for _, j := range c.Jobs {
		if j.Building == uint32(b.ID) && j.Filled() != 0 {
			t.Fatalf("inactive building's jobs were staffed")
		}
	}
	if err := c.RepairBuilding(b.ID, 60); err != nil {
		t.Fatal(err)
	}
	for _, j := range c.Jobs {
		if j.Building == uint32(b.ID) && j.Filled() == 0 {
			t.Fatalf("repaired building's jobs left empty")
		}
	}
}

func TestUnemploymentPenalty(t *testing.T) {
	c := newColony(t, 100)
	res := c.ProcessTurn(2)
	if res.Unemployed <= 20 || !hasEvent(res.Events, EventUnemployment) {
		t.Fatalf("unemployed=%d events=%v", res.Unemployed, res.Events)
	}
}

func TestProductivityScalesOutput(t *testing.T) {
	c := newColony(t, 10)
	p := c.Pops[0]
	mod := p.ProductivityModifier(c.Profile(p))
	res := c.ProcessTurn(2)
	if want := 4 * mod; math.Abs(res.Production.Food-want) > 1e-9 {
		t.Fatalf("food=%v want %v", res.Production.Food, want)
	}

	dull := newColony(t, 10)
	bright := newColony(t, 10)
	bright.Pops[0].Education = 90
	rd := dull.ProcessTurn(2)
	rb := bright.ProcessTurn(2)
	if rb.Production.Credits <= rd.Production.Credits || rb.Production.Research <= rd.Production.Research {
		t.Fatalf("education did not raise output: dull=%+v bright=%+v", rd.Production, rb.Production)
	}
}

func TestUpkeepShortfall(t *testing.T) {
	c := newColony(t, 10)
	c.Stockpile.Credits = 0
	for i := 0; i < 6; i++ {
		if _, err := c.ConstructBuilding(1, "habitat_block", 0); err != nil {
			t.Fatalf("construct %d: %v", i, err)
		}
	}
	res := c.ProcessTurn(2)
	if c.Stockpile.Credits != 0 || !hasEvent(res.Events, EventUpkeepShortfall) {
		t.Fatalf("credits=%v events=%v", c.Stockpile.Credits, res.Events)
	}
	if res.Upkeep != 6 {
		t.Fatalf("upkeep=%v", res.Upkeep)
	}
}

func TestFamine(t *testing.T) {
	c := newColony(t, 200)
	morale := c.Morale
	res := c.ProcessTurn(2)
	if !res.Famine || res.FoodBalance >= 0 || !hasEvent(res.Events, EventFamine) {
		t.Fatalf("famine=%v balance=%v", res.Famine, res.FoodBalance)
	}
	if c.Morale >= morale {
		t.Fatalf("famine did not hurt morale: %d -> %d", morale, c.Morale)
	}
	if c.LastFoodBalance >= 0 || c.GrowthRate() >= newColony(t, 200).GrowthRate() {
		t.Fatalf("deficit should slow growth")
	}
}

func TestSnapshotRestoreReplays(t *testing.T) {
	c := newColony(t, 80)
	c.ConstructBuilding(1, "research_lab", -1)
	for turn := uint64(2); turn < 10; turn++ {
		c.ProcessTurn(turn)
	}
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	r, err := Restore(st, testCatalog(t))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	for turn := uint64(10); turn < 40; turn++ {
		a, b := c.ProcessTurn(turn), r.ProcessTurn(turn)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("turn %d diverged after restore", turn)
		}
	}
}

func TestRestoreRepairsAssignments(t *testing.T) {
	c := newColony(t, 10)
	st := c.Snapshot()
	st.Jobs[0].Assigned[999] = 50
	st.Morale = 400
	r, err := Restore(st, testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.CheckInvariants(); err != nil {
		t.Fatalf("restored colony invalid: %v", err)
	}
	if c.Jobs[0].Assigned[999] != 0 {
		t.Fatalf("snapshot aliased the live colony")
	}
}

func TestLostHousingShedsOverflow(t *testing.T) {
	c, err := Found(FoundParams{
		ID:            43,
		Name:          "Tycho Deep",
		Colonists:     100,
		Species:       "human",
		Habitability:  70,
		MaxPopulation: 100,
		Turn:          1,
		Stockpile:     economy.Bundle{Credits: 5000, Production: 1000},
	}, testCatalog(t))
	if err != nil {
		t.Fatalf("found: %v", err)
	}
	b, err := c.ConstructBuilding(1, "habitat_block", -1)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	c.Pops[0].Grow(50)
	if err := c.DemolishBuilding(b.ID); err != nil {
		t.Fatalf("demolish: %v", err)
	}
	if c.MaxPopulation() != 100 {
		t.Fatalf("max population = %d after demolition", c.MaxPopulation())
	}

	res := c.ProcessTurn(2)
	if res.Population > c.MaxPopulation() {
		t.Fatalf("population %d exceeds max %d", res.Population, c.MaxPopulation())
	}
	if !hasEvent(res.Events, EventOvercrowding) {
		t.Fatalf("no overcrowding event")
	}
	if err := c.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if c.Employed() > c.Population() {
		t.Fatalf("employed %d > population %d", c.Employed(), c.Population())
	}
}

func TestEventRollsIgnoreBuildingCount(t *testing.T) {
	bare := newColony(t, 120)
	built := newColony(t, 120)
	for _, bt := range []buildings.Type{"hydroponics_farm", "research_lab", "trade_hub"} {
		if _, err := built.ConstructBuilding(1, bt, -1); err != nil {
			t.Fatalf("construct %s: %v", bt, err)
		}
	}
	for turn := uint64(1); turn <= 200; turn++ {
		if a, b := bare.drawEvents(turn), built.drawEvents(turn); a != b {
			t.Fatalf("turn %d: rolls differ with buildings: %+v vs %+v", turn, a, b)
		}
	}
}
