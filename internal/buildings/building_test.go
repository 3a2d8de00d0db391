package buildings

import (
	"errors"
	"math"
	"testing"
)

type mapRegistry map[Type]*Definition

func (m mapRegistry) Building(t Type) (*Definition, bool) {
	d, ok := m[t]
	return d, ok
}

var testRegistry = mapRegistry{
	"hydroponics": {
		Type: "hydroponics", Name: "Hydroponics Bay", Category: CategoryAgriculture, MaxLevel: 3,
		Cost: 100, Maintenance: 2, Jobs: []JobSlot{{Job: "farmer", Slots: 4}},
		Bonuses: Bonuses{Food: 0.1, Population: 10},
	},
	"research_lab": {
		Type: "research_lab", Name: "Research Lab", Category: CategoryResearch, MaxLevel: 5,
		MinInfrastructure: 2, Requires: "hydroponics",
		Bonuses: Bonuses{Research: 0.2, Morale: 3},
	},
}

func TestCreate(t *testing.T) {
	b, err := Create(testRegistry, 7, "hydroponics")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != 7 || b.Level != 1 || b.Health != MaxHealth || !b.Active || len(b.JobSlots) != 1 {
		t.Fatalf("building=%+v", b)
	}
	b.JobSlots[0].Slots = 99
	if testRegistry["hydroponics"].Jobs[0].Slots != 4 {
		t.Fatalf("job slots aliased into the catalog")
	}
	if _, err := Create(testRegistry, 8, "warp_gate"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err=%v want ErrUnknownType", err)
	}
}

func TestUpgradeDowngradeBounds(t *testing.T) {
	b, _ := Create(testRegistry, 1, "hydroponics")
	if err := b.Downgrade(); !errors.Is(err, ErrMinLevel) {
		t.Fatalf("err=%v", err)
	}
	for i := 0; i < 2; i++ {
		if err := b.Upgrade(); err != nil {
			t.Fatalf("upgrade %d: %v", i, err)
		}
	}
	if err := b.Upgrade(); !errors.Is(err, ErrMaxLevel) {
		t.Fatalf("err=%v", err)
	}
	if b.Level != 3 {
		t.Fatalf("level=%d", b.Level)
	}
}

func TestDamageRepairLifecycle(t *testing.T) {
	b, _ := Create(testRegistry, 1, "hydroponics")
	b.Damage(30)
	if !b.Active || b.Health != 70 {
		t.Fatalf("health=%d active=%v", b.Health, b.Active)
	}
	b.Damage(30)
	if b.Active {
		t.Fatalf("building still active at %d", b.Health)
	}
	if b.EffectiveBonuses() != (Bonuses{}) {
		t.Fatalf("inactive building has bonuses")
	}
	if err := b.Repair(20); err != nil || !b.Active || b.Health != 60 {
		t.Fatalf("repair: err=%v health=%d active=%v", err, b.Health, b.Active)
	}
	b.Repair(500)
	if b.Health != MaxHealth {
		t.Fatalf("health=%d", b.Health)
	}
	if !b.Damage(1000) || b.Health != 0 {
		t.Fatalf("expected destruction, health=%d", b.Health)
	}
	if err := b.Repair(10); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("err=%v", err)
	}
}

func TestScaledBonuses(t *testing.T) {
	b, _ := Create(testRegistry, 1, "hydroponics")
	b.Upgrade()
	got := b.ScaledBonuses()
	if math.Abs(got.Food-0.15) > 1e-9 {
		t.Fatalf("food=%v", got.Food)
	}
	if got.Population != 15 {
		t.Fatalf("population=%d", got.Population)
	}
	if b.ScaledSlots(4) != 6 {
		t.Fatalf("slots=%d", b.ScaledSlots(4))
	}
	b.Upgrade()
	if b.ScaledSlots(4) != 8 || b.ScaledBonuses().Population != 20 {
		t.Fatalf("level 3 scaling wrong")
	}
}

func TestCanBuild(t *testing.T) {
	def := testRegistry["research_lab"]
	var pe *PrerequisiteError

	err := def.CanBuild(1, func(Type) bool { return true })
	if !errors.As(err, &pe) || pe.MinInfrastructure != 2 || pe.Requires != "" {
		t.Fatalf("err=%v", err)
	}
	err = def.CanBuild(3, func(Type) bool { return false })
	if !errors.As(err, &pe) || pe.Requires != "hydroponics" || !errors.Is(err, ErrPrerequisite) {
		t.Fatalf("err=%v", err)
	}
	if err := def.CanBuild(3, func(t Type) bool { return t == "hydroponics" }); err != nil {
		t.Fatalf("err=%v", err)
	}
}
