// Simulation ties every empire together and runs them each turn.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/catalog"
	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/config"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/empire"
	"github.com/talgya/starcolony/internal/metrics"
	"github.com/talgya/starcolony/internal/survey"
)

// ErrUnknownEmpire reports a restored colony whose empire is not configured.
var ErrUnknownEmpire = errors.New("unknown empire")

// Empire is one configured empire and the manager running its colonies.
type Empire struct {
	ID      uint64
	Name    string
	Manager *empire.Manager

	specs []config.ColonySpec // Founding and development plan per colony
}

func (e *Empire) plan(name string) (config.ColonySpec, bool) {
	for _, cs := range e.specs {
		if cs.Name == name {
			return cs, true
		}
	}
	return config.ColonySpec{}, false
}

// Event is a colony event tagged with where it happened.
type Event struct {
	Turn        uint64           `json:"turn"`
	EmpireID    uint64           `json:"empire_id"`
	ColonyID    colony.ID        `json:"colony_id"`
	Kind        colony.EventKind `json:"kind"`
	Severity    int              `json:"severity,omitempty"`
	Description string           `json:"description"`
}

// Stats tracks aggregate campaign statistics.
type Stats struct {
	Turn          uint64         `json:"turn"`
	Colonies      int            `json:"colonies"`
	Population    int            `json:"population"`
	Production    economy.Bundle `json:"production"` // Latest turn
	Research      float64        `json:"research"`   // Cumulative, discoveries included
	Rebellions    int            `json:"rebellions"`
	Famines       int            `json:"famines"`
	Abandoned     int            `json:"abandoned"`
	Constructions int            `json:"constructions"`
	Investments   int            `json:"investments"`
	TurnMillis    float64        `json:"turn_ms"`
}

// Simulation holds every empire and the shared reference data.
type Simulation struct {
	Catalog  *catalog.Catalog
	Empires  []*Empire
	Metrics  *metrics.Metrics // Optional
	Surveyor *survey.Surveyor

	ids       *empire.IDSource
	maxEvents int
	log       *slog.Logger

	mu       sync.RWMutex
	lastTurn uint64
	events   []Event // Most recent last, at most maxEvents
	stats    Stats

	subMu   sync.Mutex
	nextSub int
	subs    map[int]chan TurnUpdate
}

// TurnUpdate is what subscribers receive after each processed turn.
type TurnUpdate struct {
	Turn   uint64  `json:"turn"`
	Stats  Stats   `json:"stats"`
	Events []Event `json:"events"`
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithMetrics records every turn into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Simulation) { s.Metrics = m }
}

// WithLogger sets the logger handed to the simulation and its managers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.log = l }
}

// NewSimulation builds the empire managers described by cfg. Colony species and build
// queues are checked against the catalog. No colony exists until Found or Restore.
func NewSimulation(cfg config.Config, cat *catalog.Catalog, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		Catalog:   cat,
		Surveyor:  survey.New(cfg.Seed),
		ids:       empire.NewIDSource(0),
		maxEvents: cfg.RecentEvents,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxEvents <= 0 {
		s.maxEvents = 500
	}

	for _, es := range cfg.Empires {
		e := &Empire{
			ID:   es.ID,
			Name: es.Name,
			Manager: empire.NewManager(es.ID, cat,
				empire.WithParallelism(cfg.Parallelism),
				empire.WithLogger(s.log),
				empire.WithIDSource(s.ids),
			),
			specs: es.Colonies,
		}
		for _, cs := range es.Colonies {
			if !cat.HasSpecies(cs.Species) {
				return nil, fmt.Errorf("colony %q: unknown species %q", cs.Name, cs.Species)
			}
			for _, t := range cs.BuildQueue {
				if _, ok := cat.Building(buildings.Type(t)); !ok {
					return nil, fmt.Errorf("colony %q: %w: %q", cs.Name, buildings.ErrUnknownType, t)
				}
			}
		}
		s.Empires = append(s.Empires, e)
	}
	return s, nil
}

// Found creates every configured colony. Colonies configured without habitability or
// capacity get them from a planet survey.
func (s *Simulation) Found(turn uint64) error {
	for _, e := range s.Empires {
		for _, cs := range e.specs {
			req := empire.ColonizeRequest{
				PlanetID:      cs.PlanetID,
				SystemID:      cs.SystemID,
				Name:          cs.Name,
				Colonists:     cs.Colonists,
				Species:       cs.Species,
				Habitability:  cs.Habitability,
				MaxPopulation: cs.MaxPopulation,
				Stockpile:     cs.Stockpile,
			}
			if req.Habitability == 0 || req.MaxPopulation == 0 {
				rep := s.Surveyor.Survey(cs.SystemID, cs.PlanetID)
				if req.Habitability == 0 {
					req.Habitability = rep.Habitability
				}
				if req.MaxPopulation == 0 {
					req.MaxPopulation = rep.Capacity
				}
				s.log.Info("planet surveyed", "colony", cs.Name, "climate", rep.Climate,
					"habitability", rep.Habitability, "capacity", rep.Capacity)
			}
			if _, err := e.Manager.Colonize(req, turn); err != nil {
				return err
			}
		}
	}
	s.mu.Lock()
	s.lastTurn = turn
	s.mu.Unlock()
	s.refreshStats()
	return nil
}

// Restore adopts previously saved colonies and resumes after turn.
func (s *Simulation) Restore(turn uint64, states []colony.State) error {
	for _, st := range states {
		e := s.empire(st.EmpireID)
		if e == nil {
			return fmt.Errorf("colony %d: %w %d", st.ID, ErrUnknownEmpire, st.EmpireID)
		}
		c, err := colony.Restore(st, s.Catalog)
		if err != nil {
			return fmt.Errorf("restore colony %d: %w", st.ID, err)
		}
		if err := e.Manager.Adopt(c); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.lastTurn = turn
	s.mu.Unlock()
	s.refreshStats()
	return nil
}

// CurrentTurn returns the most recently processed turn.
func (s *Simulation) CurrentTurn() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTurn
}

// ProcessTurn develops every colony from its plan, runs every empire's turn, and
// folds the results into the event buffer, statistics and metrics.
func (s *Simulation) ProcessTurn(turn uint64) []empire.TurnResult {
	start := time.Now()

	var devEvents []Event
	built, invested := 0, 0
	for _, e := range s.Empires {
		ev, b, inv := s.develop(e, turn)
		devEvents = append(devEvents, ev...)
		built += b
		invested += inv
	}

	results := make([]empire.TurnResult, 0, len(s.Empires))
	for _, e := range s.Empires {
		results = append(results, e.Manager.ProcessAllColonies(turn))
	}
	elapsed := time.Since(start)

	turnEvents := devEvents

	s.mu.Lock()
	s.lastTurn = turn
	s.pushEvents(devEvents)
	st := &s.stats
	st.Turn = turn
	st.Production = economy.Bundle{}
	st.Constructions += built
	st.Investments += invested
	st.TurnMillis = float64(elapsed.Microseconds()) / 1000
	for _, r := range results {
		st.Production = st.Production.Plus(r.TotalProduction)
		st.Research += r.TotalResearch
		st.Rebellions += len(r.Rebellions)
		st.Famines += len(r.Famines)
		st.Abandoned += len(r.Abandoned)
		for _, cr := range r.Colonies {
			evs := make([]Event, 0, len(cr.Events))
			for _, ce := range cr.Events {
				evs = append(evs, Event{
					Turn:        ce.Turn,
					EmpireID:    r.EmpireID,
					ColonyID:    cr.ColonyID,
					Kind:        ce.Kind,
					Severity:    ce.Severity,
					Description: ce.Description,
				})
			}
			s.pushEvents(evs)
			turnEvents = append(turnEvents, evs...)
		}
	}
	s.mu.Unlock()
	s.refreshStats()

	if s.Metrics != nil {
		s.Metrics.ObserveTurn(results, elapsed)
		s.Metrics.ObserveStockpiles(s.States())
	}

	stats := s.Stats()
	s.publish(TurnUpdate{Turn: turn, Stats: stats, Events: turnEvents})
	s.log.Info("turn report",
		"turn", turn,
		"colonies", stats.Colonies,
		"population", humanize.Comma(int64(stats.Population)),
		"credits", humanize.Commaf(float64(int64(stats.Production.Credits))),
		"research", humanize.Commaf(float64(int64(stats.Production.Research))),
		"constructions", built,
		"elapsed", elapsed,
	)
	for _, r := range results {
		for _, id := range r.Rebellions {
			s.log.Warn("colony in rebellion", "turn", turn, "empire", r.EmpireID, "colony", id)
		}
		for _, id := range r.Abandoned {
			s.log.Warn("colony abandoned", "turn", turn, "empire", r.EmpireID, "colony", id)
		}
	}
	return results
}

// develop works through each colony's build queue and infrastructure plan: the first
// queued building type the colony lacks is built when affordable, then infrastructure
// is raised when production allows.
func (s *Simulation) develop(e *Empire, turn uint64) (events []Event, built, invested int) {
	for _, id := range e.Manager.IDs() {
		_ = e.Manager.With(id, func(c *colony.Colony) error {
			plan, ok := e.plan(c.Name)
			if !ok || c.Status == colony.StatusAbandoned {
				return nil
			}
			for _, name := range plan.BuildQueue {
				t := buildings.Type(name)
				if c.HasBuilding(t) {
					continue
				}
				b, err := c.ConstructBuilding(turn, t, -1)
				if err != nil {
					s.log.Debug("construction deferred", "colony", c.ID, "type", t, "error", err)
					break
				}
				built++
				events = append(events, Event{
					Turn:        turn,
					EmpireID:    e.ID,
					ColonyID:    c.ID,
					Kind:        colony.EventConstruction,
					Description: fmt.Sprintf("%s completed on %s", b.Name, c.Name),
				})
				break
			}
			if plan.Invest {
				if err := c.InvestInfrastructure(turn); err == nil {
					invested++
					events = append(events, Event{
						Turn:        turn,
						EmpireID:    e.ID,
						ColonyID:    c.ID,
						Kind:        colony.EventInfrastructure,
						Description: fmt.Sprintf("%s infrastructure reached level %d", c.Name, c.Infrastructure),
					})
				}
			}
			return nil
		})
	}
	return events, built, invested
}

// Subscribe registers for turn updates. Slow subscribers miss updates rather than
// stall the turn; buffer sets how many may queue. The returned cancel closes the channel.
func (s *Simulation) Subscribe(buffer int) (<-chan TurnUpdate, func()) {
	ch := make(chan TurnUpdate, max(1, buffer))
	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]chan TurnUpdate)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Simulation) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Simulation) publish(u TurnUpdate) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			s.log.Debug("subscriber lagging, update dropped", "subscriber", id, "turn", u.Turn)
		}
	}
}

// pushEvents appends to the bounded buffer. Caller holds s.mu.
func (s *Simulation) pushEvents(evs []Event) {
	s.events = append(s.events, evs...)
	if over := len(s.events) - s.maxEvents; over > 0 {
		s.events = append(s.events[:0], s.events[over:]...)
	}
}

func (s *Simulation) refreshStats() {
	colonies, pop := 0, 0
	for _, e := range s.Empires {
		for _, st := range e.Manager.Snapshot() {
			colonies++
			for _, p := range st.Pops {
				pop += p.Size
			}
		}
	}
	s.mu.Lock()
	s.stats.Colonies = colonies
	s.stats.Population = pop
	s.stats.Turn = s.lastTurn
	s.mu.Unlock()
}

// Stats returns a copy of the current statistics.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// RecentEvents returns up to limit of the newest events, oldest first. limit <= 0
// returns the whole buffer.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// States snapshots every colony, grouped by empire in configuration order.
func (s *Simulation) States() []colony.State {
	var out []colony.State
	for _, e := range s.Empires {
		out = append(out, e.Manager.Snapshot()...)
	}
	return out
}

// Colony returns a snapshot of one colony.
func (s *Simulation) Colony(id colony.ID) (colony.State, error) {
	e, err := s.owner(id)
	if err != nil {
		return colony.State{}, err
	}
	return e.Manager.Colony(id)
}

// ResolveRebellion ends a colony's rebellion, setting stability to at least stability.
func (s *Simulation) ResolveRebellion(id colony.ID, stability int) error {
	e, err := s.owner(id)
	if err != nil {
		return err
	}
	return e.Manager.ResolveRebellion(id, s.CurrentTurn(), stability)
}

// Migrate moves people between two colonies of the same empire.
func (s *Simulation) Migrate(src, dst colony.ID, count int, forced bool) (int, error) {
	e, err := s.owner(src)
	if err != nil {
		return 0, err
	}
	return e.Manager.MigratePops(src, dst, count, forced, s.CurrentTurn())
}

// Attack applies damage to a colony.
func (s *Simulation) Attack(id colony.ID, amount int, orbital bool) (colony.DamageReport, error) {
	e, err := s.owner(id)
	if err != nil {
		return colony.DamageReport{}, err
	}
	var rep colony.DamageReport
	err = e.Manager.With(id, func(c *colony.Colony) error {
		rep = c.TakeDamage(s.CurrentTurn(), amount, orbital)
		return nil
	})
	return rep, err
}

// Construct builds a building at catalog price outside any plan.
func (s *Simulation) Construct(id colony.ID, t buildings.Type) (buildings.Building, error) {
	e, err := s.owner(id)
	if err != nil {
		return buildings.Building{}, err
	}
	var b buildings.Building
	err = e.Manager.With(id, func(c *colony.Colony) error {
		var cerr error
		b, cerr = c.ConstructBuilding(s.CurrentTurn(), t, -1)
		return cerr
	})
	return b, err
}

// Abandon marks a colony abandoned; the next turn removes it.
func (s *Simulation) Abandon(id colony.ID) error {
	e, err := s.owner(id)
	if err != nil {
		return err
	}
	return e.Manager.Abandon(id, s.CurrentTurn())
}

func (s *Simulation) empire(id uint64) *Empire {
	for _, e := range s.Empires {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Simulation) owner(id colony.ID) (*Empire, error) {
	for _, e := range s.Empires {
		if _, err := e.Manager.Colony(id); err == nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", empire.ErrColonyNotFound, id)
}
