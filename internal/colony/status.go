package colony

import (
	"fmt"
	"strings"
)

// Type is the colony's size class, derived from population.
type Type uint8

const (
	TypeOutpost Type = iota
	TypeSettlement
	TypeColony
	TypeProvince
	TypeMajorColony
	TypeMetropolis
)

var typeNames = [...]string{"outpost", "settlement", "colony", "province", "major_colony", "metropolis"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses a type name.
func (t *Type) UnmarshalText(b []byte) error {
	for i, n := range typeNames {
		if strings.EqualFold(string(b), n) {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("unknown colony type %q", string(b))
}

// TypeFor classifies a population.
func TypeFor(population int) Type {
	switch {
	case population < 50:
		return TypeOutpost
	case population < 200:
		return TypeSettlement
	case population < 500:
		return TypeColony
	case population < 1000:
		return TypeProvince
	case population < 5000:
		return TypeMajorColony
	}
	return TypeMetropolis
}

// Status is the colony's position in the status machine.
type Status uint8

const (
	StatusDeveloping Status = iota
	StatusStable
	StatusFlourishing
	StatusCivilUnrest
	StatusRebellion
	StatusAbandoned
)

var statusNames = [...]string{"developing", "stable", "flourishing", "civil_unrest", "rebellion", "abandoned"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if strings.EqualFold(string(b), n) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown colony status %q", string(b))
}

// Status thresholds.
const (
	RebellionStability = 10
	UnrestStability    = 20
	DevelopingAge      = 10
	FlourishingInfra   = 5
)

// nextStatus applies the status table. Abandoned is terminal and Rebellion is sticky.
func (c *Colony) nextStatus() Status {
	switch {
	case c.Status == StatusAbandoned || c.Population() == 0:
		return StatusAbandoned
	case c.Status == StatusRebellion:
		return StatusRebellion
	case c.Stability < RebellionStability:
		return StatusRebellion
	case c.Stability < UnrestStability:
		return StatusCivilUnrest
	case c.Age < DevelopingAge:
		return StatusDeveloping
	case c.Infrastructure >= FlourishingInfra:
		return StatusFlourishing
	}
	return StatusStable
}

// ResolveRebellion ends a rebellion by outside intervention, lifting stability to at
// least the unrest threshold and re-evaluating status.
func (c *Colony) ResolveRebellion(turn uint64, stability int) error {
	if c.Status != StatusRebellion {
		return ErrNotInRebellion
	}
	c.Stability = max(stability, UnrestStability)
	c.clampStats()
	c.Status = StatusDeveloping
	c.Status = c.nextStatus()
	c.record(Event{Turn: turn, Kind: EventRebellionResolved, Description: fmt.Sprintf("Order restored on %s", c.Name)})
	c.logger().Info("rebellion resolved", "colony", c.ID, "status", c.Status)
	return nil
}

// Abandon marks the colony abandoned. The manager removes it.
func (c *Colony) Abandon(turn uint64) {
	if c.Status == StatusAbandoned {
		return
	}
	c.Status = StatusAbandoned
	c.record(Event{Turn: turn, Kind: EventAbandoned, Description: fmt.Sprintf("%s has been abandoned", c.Name)})
}
