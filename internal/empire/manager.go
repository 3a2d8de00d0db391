// Package empire coordinates the colonies of one empire: founding, turn processing and
// aggregation, and migration between colonies.
package empire

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/economy"
)

var (
	ErrColonyNotFound  = errors.New("colony not found")
	ErrTooFewColonists = colony.ErrTooFewColonists
	ErrDuplicateColony = errors.New("colony already managed")
)

// IDSource allocates colony ids. Managers of one game share a source so ids are unique
// across empires.
type IDSource struct {
	next atomic.Uint64
}

// NewIDSource starts allocation after last.
func NewIDSource(last uint64) *IDSource {
	s := &IDSource{}
	s.next.Store(last)
	return s
}

// Next returns a fresh id.
func (s *IDSource) Next() colony.ID {
	return colony.ID(s.next.Add(1))
}

// Observe makes sure future ids are above id.
func (s *IDSource) Observe(id colony.ID) {
	for {
		cur := s.next.Load()
		if uint64(id) <= cur || s.next.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// Manager owns an empire's colonies. A single mutex serializes every operation, so
// migration sees both colonies in a consistent state.
type Manager struct {
	EmpireID uint64

	mu          sync.Mutex
	colonies    []*colony.Colony // Ordered by id
	cat         colony.Catalog
	ids         *IDSource
	parallelism int
	log         *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithParallelism processes up to n colonies concurrently per turn. n <= 1 is sequential.
func WithParallelism(n int) Option {
	return func(m *Manager) { m.parallelism = n }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithIDSource shares an id allocator between managers.
func WithIDSource(s *IDSource) Option {
	return func(m *Manager) { m.ids = s }
}

// NewManager creates an empty manager for an empire.
func NewManager(empireID uint64, cat colony.Catalog, opts ...Option) *Manager {
	m := &Manager{EmpireID: empireID, cat: cat, parallelism: 1}
	for _, o := range opts {
		o(m)
	}
	if m.ids == nil {
		m.ids = NewIDSource(0)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// ColonizeRequest describes a new colony.
type ColonizeRequest struct {
	PlanetID      uint64
	SystemID      uint64
	Name          string
	Colonists     int
	Species       string
	Habitability  int
	MaxPopulation int
	Stockpile     economy.Bundle
}

// Colonize founds a colony. It fails with ErrTooFewColonists below ten colonists.
func (m *Manager) Colonize(req ColonizeRequest, turn uint64) (*colony.Colony, error) {
	if req.Colonists < colony.MinColonists {
		return nil, fmt.Errorf("colonize %s: %w: %d proposed", req.Name, ErrTooFewColonists, req.Colonists)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := colony.Found(colony.FoundParams{
		ID:            m.ids.Next(),
		Name:          req.Name,
		PlanetID:      req.PlanetID,
		SystemID:      req.SystemID,
		EmpireID:      m.EmpireID,
		Colonists:     req.Colonists,
		Species:       req.Species,
		Habitability:  req.Habitability,
		MaxPopulation: req.MaxPopulation,
		Turn:          turn,
		Stockpile:     req.Stockpile,
	}, m.cat)
	if err != nil {
		return nil, fmt.Errorf("colonize %s: %w", req.Name, err)
	}
	c.SetLogger(m.log)
	m.colonies = append(m.colonies, c)
	m.log.Info("colony founded", "empire", m.EmpireID, "colony", c.ID, "name", c.Name, "colonists", req.Colonists)
	return c, nil
}

// Adopt adds an existing colony, e.g. one restored from storage.
func (m *Manager) Adopt(c *colony.Colony) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(c.ID) >= 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateColony, c.ID)
	}
	m.ids.Observe(c.ID)
	c.SetLogger(m.log)
	m.colonies = append(m.colonies, c)
	slices.SortFunc(m.colonies, func(a, b *colony.Colony) int { return cmpColony(a.ID, b.ID) })
	return nil
}

// Abandon marks a colony abandoned; it is reported and removed on the next turn.
func (m *Manager) Abandon(id colony.ID, turn uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	c.Abandon(turn)
	return nil
}

// Len returns the number of managed colonies.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.colonies)
}

// IDs returns the managed colony ids in order.
func (m *Manager) IDs() []colony.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]colony.ID, len(m.colonies))
	for i, c := range m.colonies {
		ids[i] = c.ID
	}
	return ids
}

// Snapshot returns deep copies of every colony's state.
func (m *Manager) Snapshot() []colony.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]colony.State, len(m.colonies))
	for i, c := range m.colonies {
		out[i] = c.Snapshot()
	}
	return out
}

// Colony returns a snapshot of one colony.
func (m *Manager) Colony(id colony.ID) (colony.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	if c == nil {
		return colony.State{}, fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	return c.Snapshot(), nil
}

// With runs fn against a colony under the manager lock. Use it for commands such as
// construction or damage that the manager doesn't wrap.
func (m *Manager) With(id colony.ID, fn func(*colony.Colony) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	return fn(c)
}

func (m *Manager) get(id colony.ID) *colony.Colony {
	if i := m.index(id); i >= 0 {
		return m.colonies[i]
	}
	return nil
}

func (m *Manager) index(id colony.ID) int {
	return slices.IndexFunc(m.colonies, func(c *colony.Colony) bool { return c.ID == id })
}

func cmpColony(a, b colony.ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// TurnResult aggregates one empire turn.
type TurnResult struct {
	EmpireID        uint64              `json:"empire_id"`
	Turn            uint64              `json:"turn"`
	Colonies        []colony.TurnResult `json:"colonies"`
	TotalProduction economy.Bundle      `json:"total_production"`
	TotalResearch   float64             `json:"total_research"` // Research output plus discoveries
	Population      int                 `json:"population"`
	Rebellions      []colony.ID         `json:"rebellions"`
	Famines         []colony.ID         `json:"famines"`
	Abandoned       []colony.ID         `json:"abandoned"`
}

// ProcessAllColonies runs one turn for every colony, aggregates the results, and
// removes colonies that were abandoned. Colonies are independent within a turn, so they
// may run in parallel; results keep colony order regardless.
func (m *Manager) ProcessAllColonies(turn uint64) TurnResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := slices.Clone(m.colonies)
	results := make([]colony.TurnResult, len(batch))

	if m.parallelism > 1 && len(batch) > 1 {
		var g errgroup.Group
		g.SetLimit(m.parallelism)
		for i, c := range batch {
			g.Go(func() error {
				results[i] = c.ProcessTurn(turn)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, c := range batch {
			results[i] = c.ProcessTurn(turn)
		}
	}

	out := TurnResult{EmpireID: m.EmpireID, Turn: turn, Colonies: results}
	for _, r := range results {
		out.TotalProduction = out.TotalProduction.Plus(r.Production)
		out.TotalResearch += r.Production.Research + r.BonusResearch
		out.Population += r.Population
		if r.EnteredRebellion {
			out.Rebellions = append(out.Rebellions, r.ColonyID)
		}
		if r.Famine {
			out.Famines = append(out.Famines, r.ColonyID)
		}
		if r.Abandoned {
			out.Abandoned = append(out.Abandoned, r.ColonyID)
		}
	}
	if len(out.Abandoned) > 0 {
		m.colonies = slices.DeleteFunc(m.colonies, func(c *colony.Colony) bool {
			return slices.Contains(out.Abandoned, c.ID)
		})
		m.log.Info("colonies removed", "empire", m.EmpireID, "turn", turn, "abandoned", out.Abandoned)
	}
	return out
}

// ResolveRebellion ends a colony's rebellion by outside intervention.
func (m *Manager) ResolveRebellion(id colony.ID, turn uint64, stability int) error {
	return m.With(id, func(c *colony.Colony) error {
		return c.ResolveRebellion(turn, stability)
	})
}
