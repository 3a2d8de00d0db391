// Package engine provides the turn loop and the simulation that ties every empire,
// the catalog, persistence and metrics together.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward one turn at a time.
type Engine struct {
	Turn     uint64        // Last completed turn; only the Run goroutine writes it
	Interval time.Duration // Wall time per turn at speed 1
	MaxTurns uint64        // Stop after this turn; 0 runs until Stop

	// OnTurn is called once per turn with the new turn number.
	OnTurn func(turn uint64)

	speed   atomic.Uint64 // float64 bits
	turn    atomic.Uint64 // mirror of Turn for other goroutines
	running atomic.Bool
	stopMu  sync.Mutex
	stop    chan struct{}
}

// NewEngine creates an engine at speed 1 with a one second interval.
func NewEngine() *Engine {
	e := &Engine{Interval: time.Second}
	e.SetSpeed(1)
	return e
}

// Speed returns the speed multiplier. 0 means paused.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier. Negative values pause.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(max(v, 0)))
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// CurrentTurn is safe to call from any goroutine.
func (e *Engine) CurrentTurn() uint64 { return e.turn.Load() }

// Run starts the turn loop. Blocks until Stop is called or MaxTurns is reached.
func (e *Engine) Run() {
	stop := e.stopChan()
	e.turn.Store(e.Turn)
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("turn engine started", "turn", e.Turn, "speed", e.Speed(), "max_turns", e.MaxTurns)

	for {
		if e.MaxTurns > 0 && e.Turn >= e.MaxTurns {
			slog.Info("turn limit reached", "turn", e.Turn)
			return
		}
		speed := e.Speed()
		if speed <= 0 {
			// Paused.
			if !e.sleep(stop, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.step()

		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !e.sleep(stop, target-elapsed) {
				break
			}
		} else if !e.sleep(stop, 0) {
			break
		}
	}
	slog.Info("turn engine stopped", "turn", e.Turn)
}

// Stop halts the turn loop after the current turn.
func (e *Engine) Stop() {
	stop := e.stopChan()
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	select {
	case <-stop:
	default:
		close(stop)
	}
}

func (e *Engine) stopChan() chan struct{} {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stop == nil {
		e.stop = make(chan struct{})
	}
	return e.stop
}

// sleep waits d, returning false if the engine was stopped meanwhile.
func (e *Engine) sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

// step advances the simulation by one turn.
func (e *Engine) step() {
	e.Turn++
	if e.OnTurn != nil {
		e.OnTurn(e.Turn)
	}
	e.turn.Store(e.Turn)
}
