package empire

import (
	"errors"
	"fmt"

	"github.com/talgya/starcolony/internal/colony"
)

// MinRemainingPopulation is the floor a source colony keeps after emigration.
const MinRemainingPopulation = 10

// Migration failure reasons.
var (
	ErrSameColony         = errors.New("source and destination are the same colony")
	ErrInvalidCount       = errors.New("migration count must be positive")
	ErrSourceFloor        = errors.New("source would drop below the population floor")
	ErrDestinationFull    = errors.New("destination lacks capacity")
	ErrUnhappyDestination = errors.New("migrants are happier than the destination")
	ErrColonyAbandoned    = errors.New("colony abandoned")
)

// MigrationError reports a rejected migration. It unwraps to one of the reasons above.
type MigrationError struct {
	Source      colony.ID
	Destination colony.ID
	Count       int
	Reason      error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate %d from colony %d to %d: %v", e.Count, e.Source, e.Destination, e.Reason)
}

func (e *MigrationError) Unwrap() error { return e.Reason }

// MigratePops moves count people from src to dst. The source keeps at least ten people
// and the destination must have room. Voluntary migration refuses any migrant happier than
// the destination's morale; forced migration always goes ahead but costs the migrants
// happiness and the source stability. Both colonies are checked and changed under the
// manager lock. Returns the number moved.
func (m *Manager) MigratePops(src, dst colony.ID, count int, forced bool, turn uint64) (int, error) {
	fail := func(reason error) (int, error) {
		return 0, &MigrationError{Source: src, Destination: dst, Count: count, Reason: reason}
	}
	if src == dst {
		return fail(ErrSameColony)
	}
	if count <= 0 {
		return fail(ErrInvalidCount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := m.get(src), m.get(dst)
	if from == nil || to == nil {
		return fail(ErrColonyNotFound)
	}
	if from.Status == colony.StatusAbandoned || to.Status == colony.StatusAbandoned {
		return fail(ErrColonyAbandoned)
	}
	if from.Population()-count < MinRemainingPopulation {
		return fail(ErrSourceFloor)
	}
	if to.Population()+count > to.MaxPopulation() {
		return fail(ErrDestinationFull)
	}
	if !forced {
		for _, p := range from.PlanMigrants(count) {
			if p.Happiness > to.Morale {
				return fail(ErrUnhappyDestination)
			}
		}
	}

	moved := from.DetachPops(turn, count)
	if forced {
		for i := range moved {
			moved[i].AdjustHappiness(-colony.ForcedMigrationHappiness)
		}
		from.PenalizeForcedDeparture()
	}
	to.AdmitPops(turn, moved, src)

	m.log.Info("migration", "empire", m.EmpireID, "from", src, "to", dst, "count", count, "forced", forced)
	return count, nil
}
