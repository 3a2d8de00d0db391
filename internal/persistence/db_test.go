package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/starcolony/internal/catalog"
	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/empire"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testStates(t *testing.T, turns int) []colony.State {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var out []colony.State
	for i, n := range []int{40, 120} {
		c, err := colony.Found(colony.FoundParams{
			ID:           colony.ID(i + 1),
			Name:         "Colony",
			EmpireID:     1,
			Colonists:    n,
			Species:      "human",
			Habitability: 70,
			Stockpile:    economy.Bundle{Credits: 500, Food: 30},
		}, cat)
		if err != nil {
			t.Fatalf("found: %v", err)
		}
		for turn := 1; turn <= turns; turn++ {
			c.ProcessTurn(uint64(turn))
		}
		out = append(out, c.Snapshot())
	}
	return out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetMeta("missing"); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if err := db.SaveMeta(MetaSeed, "42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, err := db.GetMeta(MetaSeed); err != nil || v != "42" {
		t.Fatalf("get = %q, %v", v, err)
	}

	id, err := db.CampaignID()
	if err != nil || id == "" {
		t.Fatalf("campaign id = %q, %v", id, err)
	}
	again, err := db.CampaignID()
	if err != nil || again != id {
		t.Fatalf("campaign id changed: %q -> %q (%v)", id, again, err)
	}
}

func TestSaveLoadColonies(t *testing.T) {
	db := openTestDB(t)
	if db.HasState() {
		t.Fatalf("fresh db reports state")
	}
	if turn, err := db.LastTurn(); err != nil || turn != 0 {
		t.Fatalf("last turn = %d, %v", turn, err)
	}

	states := testStates(t, 5)
	if err := db.SaveColonies(5, states); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Full replace: saving a subset drops the rest.
	if err := db.SaveColonies(6, states[1:]); err != nil {
		t.Fatalf("save subset: %v", err)
	}
	if !db.HasState() {
		t.Fatalf("HasState = false after save")
	}
	if turn, err := db.LastTurn(); err != nil || turn != 6 {
		t.Fatalf("last turn = %d, %v", turn, err)
	}

	loaded, err := db.LoadColonies()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != states[1].ID {
		t.Fatalf("loaded %d colonies", len(loaded))
	}
	if !bytes.Equal(mustJSON(t, loaded[0]), mustJSON(t, states[1])) {
		t.Fatalf("colony state changed across save/load")
	}
}

func TestSaveTurnEvents(t *testing.T) {
	db := openTestDB(t)
	results := []empire.TurnResult{{
		EmpireID:   1,
		Turn:       3,
		Population: 140,
		Colonies: []colony.TurnResult{{
			ColonyID: 7,
			Turn:     3,
			Events: []colony.Event{
				{Turn: 3, Kind: colony.EventFestival, Description: "a festival"},
				{Turn: 3, Kind: colony.EventDisease, Description: "plague", Severity: 2},
			},
		}},
	}}
	if err := db.SaveTurn(results); err != nil {
		t.Fatalf("save turn: %v", err)
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Kind != "disease" || events[0].Severity != 2 || events[0].ColonyID != 7 {
		t.Fatalf("newest event = %+v", events[0])
	}

	got, err := db.TurnResults(3)
	if err != nil {
		t.Fatalf("turn results: %v", err)
	}
	if len(got) != 1 || got[0].Population != 140 || len(got[0].Colonies[0].Events) != 2 {
		t.Fatalf("turn results = %+v", got)
	}
}

func TestSaveStateAllOrNothing(t *testing.T) {
	db := openTestDB(t)
	states := testStates(t, 2)
	results := []empire.TurnResult{{
		EmpireID: 1,
		Turn:     2,
		Colonies: []colony.TurnResult{{
			ColonyID: states[0].ID,
			Turn:     2,
			Events:   []colony.Event{{Turn: 2, Kind: colony.EventFestival, Description: "a festival"}},
		}},
	}}

	// A repeated colony id fails the colony write after the events were staged.
	dup := append([]colony.State{states[0]}, states...)
	if err := db.SaveState(2, dup, results); err == nil {
		t.Fatalf("save with duplicate colony succeeded")
	}
	if events, _ := db.RecentEvents(10); len(events) != 0 {
		t.Fatalf("failed save left %d events behind", len(events))
	}
	if db.HasState() {
		t.Fatalf("failed save left colonies behind")
	}

	// Retrying the same pending results writes their events exactly once.
	if err := db.SaveState(2, states, results); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if events, _ := db.RecentEvents(10); len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if turn, err := db.LastTurn(); err != nil || turn != 2 {
		t.Fatalf("last turn = %d, %v", turn, err)
	}
}

func TestSnapshotChain(t *testing.T) {
	db := openTestDB(t)
	first, err := db.SaveSnapshot(10, testStates(t, 10))
	if err != nil {
		t.Fatalf("snapshot 10: %v", err)
	}
	if first.PrevHash != "" || first.Hash == "" || len(first.Data) == 0 {
		t.Fatalf("first snapshot = %+v", first)
	}
	states := testStates(t, 20)
	second, err := db.SaveSnapshot(20, states)
	if err != nil {
		t.Fatalf("snapshot 20: %v", err)
	}
	if second.PrevHash != first.Hash {
		t.Fatalf("second links to %q, want %q", second.PrevHash, first.Hash)
	}
	if err := db.VerifyChain(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	loaded, err := db.LoadSnapshot(20)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(mustJSON(t, loaded), mustJSON(t, states)) {
		t.Fatalf("snapshot payload changed")
	}

	headers, err := db.Snapshots()
	if err != nil || len(headers) != 2 || headers[1].Turn != 20 {
		t.Fatalf("headers = %+v, %v", headers, err)
	}

	// Tamper with the first payload.
	if _, err := db.conn.Exec("UPDATE snapshots SET data = ? WHERE turn = 10", []byte("garbage")); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := db.VerifyChain(); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("verify after tamper = %v, want ErrChainBroken", err)
	}
}

func TestChainHashDependsOnPrev(t *testing.T) {
	data := []byte("payload")
	if ChainHash(data, "") == ChainHash(data, "abc") {
		t.Fatalf("hash ignores predecessor")
	}
	if ChainHash(data, "abc") != ChainHash(data, "abc") {
		t.Fatalf("hash not deterministic")
	}
}

func TestTurnLogRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewTurnLog(dir, "turns", 10)
	for turn := uint64(1); turn <= 25; turn++ {
		if err := l.Write(TurnLogEntry{Campaign: "c1", Turn: turn, Results: map[string]uint64{"turn": turn}}); err != nil {
			t.Fatalf("write %d: %v", turn, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	// Turns 1-9, 10-19, 20-25.
	if len(files) != 3 {
		t.Fatalf("segments = %d, want 3", len(files))
	}
	entries, err := ReadTurnLog(filepath.Join(dir, "turns-00000010.jsonl.zst"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 10 || entries[0].Turn != 10 || entries[9].Turn != 19 {
		t.Fatalf("segment entries = %d", len(entries))
	}
	if entries[0].Campaign != "c1" || len(entries[0].Results) == 0 {
		t.Fatalf("entry = %+v", entries[0])
	}
}
