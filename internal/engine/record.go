package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/starcolony/internal/empire"
	"github.com/talgya/starcolony/internal/persistence"
)

// Recorder persists turns: results and colony state every SaveEvery turns, a chained
// snapshot every SnapshotEvery turns, and every turn to the compressed turn log.
// Nil DB or Log skips that sink.
type Recorder struct {
	DB            *persistence.DB
	Log           *persistence.TurnLog
	Campaign      string
	SaveEvery     uint64
	SnapshotEvery uint64 // 0 disables snapshots

	pending []empire.TurnResult // Results not yet written to the DB
}

// Record handles one processed turn.
func (r *Recorder) Record(sim *Simulation, turn uint64, results []empire.TurnResult) error {
	if r.Log != nil {
		if err := r.Log.Write(persistence.TurnLogEntry{Campaign: r.Campaign, Turn: turn, Results: results}); err != nil {
			return fmt.Errorf("turn log: %w", err)
		}
	}
	if r.DB == nil {
		return nil
	}
	r.pending = append(r.pending, results...)

	every := max(r.SaveEvery, 1)
	if turn%every == 0 {
		if err := r.flush(sim, turn); err != nil {
			return err
		}
	}
	if r.SnapshotEvery > 0 && turn%r.SnapshotEvery == 0 {
		snap, err := r.DB.SaveSnapshot(turn, sim.States())
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		slog.Info("snapshot saved", "turn", turn, "hash", snap.Hash[:12], "raw_bytes", snap.RawSize, "stored_bytes", len(snap.Data))
	}
	return nil
}

// Save writes everything still pending, used on shutdown.
func (r *Recorder) Save(sim *Simulation) error {
	if r.DB == nil {
		return nil
	}
	return r.flush(sim, sim.CurrentTurn())
}

func (r *Recorder) flush(sim *Simulation, turn uint64) error {
	if err := r.DB.SaveState(turn, sim.States(), r.pending); err != nil {
		return err
	}
	r.pending = r.pending[:0]
	return nil
}
