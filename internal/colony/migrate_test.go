package colony

import (
	"testing"

	"github.com/talgya/starcolony/internal/pops"
)

func TestPlanMigrantsLeastHappyFirst(t *testing.T) {
	c := newColony(t, 20)
	sad := c.addPop(pops.Pop{Size: 3, Species: "human", Stratum: pops.Worker, Happiness: 20, Education: 30, Health: 80})
	plan := c.PlanMigrants(5)
	if len(plan) != 2 || plan[0].ID != sad.ID || plan[0].Size != 3 || plan[1].Size != 2 {
		t.Fatalf("plan=%+v", plan)
	}
	if c.Population() != 23 {
		t.Fatalf("planning changed the colony")
	}
}

func TestDetachAndAdmit(t *testing.T) {
	src := newColony(t, 20)
	dst := newColony(t, 10)
	moved := src.DetachPops(2, 6)
	if src.Population() != 14 {
		t.Fatalf("source population=%d", src.Population())
	}
	if err := src.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	dst.AdmitPops(2, moved, src.ID)
	if dst.Population() != 16 {
		t.Fatalf("destination population=%d", dst.Population())
	}
	var refugees int
	for _, p := range dst.Pops {
		if p.Refugee {
			refugees += p.Size
			if p.Origin != uint64(src.ID) || p.ID == 0 {
				t.Fatalf("refugee pop=%+v", p)
			}
		}
	}
	if refugees != 6 {
		t.Fatalf("refugees=%d", refugees)
	}
	for turn := uint64(3); turn < 3+pops.RefugeeIntegrationTurns; turn++ {
		dst.ProcessTurn(turn)
	}
	for _, p := range dst.Pops {
		if p.Refugee {
			t.Fatalf("refugees not integrated after %d turns", pops.RefugeeIntegrationTurns)
		}
	}
	if !hasEvent(dst.Events, EventRefugeesIntegrated) {
		t.Fatalf("no integration event")
	}
}
