package persistence

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/talgya/starcolony/internal/colony"
)

// ErrChainBroken reports a snapshot whose hash does not follow from its predecessor.
var ErrChainBroken = errors.New("snapshot chain broken")

// Snapshot is one stored turn snapshot. Hash = blake3(data ‖ prev hash).
type Snapshot struct {
	Turn     uint64 `db:"turn" json:"turn"`
	RawSize  int    `db:"raw_size" json:"raw_size"`
	Hash     string `db:"hash" json:"hash"`
	PrevHash string `db:"prev_hash" json:"prev_hash"`
	Data     []byte `db:"data" json:"-"` // lz4-compressed JSON []colony.State
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

// ChainHash links compressed snapshot data to the previous hash.
func ChainHash(data []byte, prev string) string {
	h := blake3.New(32, nil)
	h.Write(data)
	h.Write([]byte(prev))
	return hex.EncodeToString(h.Sum(nil))
}

// SaveSnapshot compresses the colony states for a turn and appends them to the chain.
// Turns are expected in increasing order; rewriting an old turn breaks the links after it.
func (db *DB) SaveSnapshot(turn uint64, states []colony.State) (Snapshot, error) {
	raw, err := json.Marshal(states)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := compressLZ4(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("compress snapshot: %w", err)
	}

	var prev string
	err = db.conn.Get(&prev, "SELECT hash FROM snapshots WHERE turn < ? ORDER BY turn DESC LIMIT 1", turn)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, err
	}

	s := Snapshot{Turn: turn, RawSize: len(raw), PrevHash: prev, Data: data}
	s.Hash = ChainHash(data, prev)
	if _, err := db.conn.Exec(
		"INSERT OR REPLACE INTO snapshots (turn, raw_size, hash, prev_hash, data) VALUES (?, ?, ?, ?, ?)",
		s.Turn, s.RawSize, s.Hash, s.PrevHash, s.Data,
	); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot %d: %w", turn, err)
	}
	return s, nil
}

// LoadSnapshot decodes the colony states stored for a turn.
func (db *DB) LoadSnapshot(turn uint64) ([]colony.State, error) {
	var s Snapshot
	if err := db.conn.Get(&s, "SELECT turn, raw_size, hash, prev_hash, data FROM snapshots WHERE turn = ?", turn); err != nil {
		return nil, err
	}
	return s.States()
}

// States decodes the snapshot payload.
func (s Snapshot) States() ([]colony.State, error) {
	raw, err := decompressLZ4(s.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %d: %w", s.Turn, err)
	}
	var states []colony.State
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", s.Turn, err)
	}
	return states, nil
}

// Snapshots lists snapshot headers in turn order, without payloads.
func (db *DB) Snapshots() ([]Snapshot, error) {
	var out []Snapshot
	err := db.conn.Select(&out, "SELECT turn, raw_size, hash, prev_hash FROM snapshots ORDER BY turn")
	return out, err
}

// VerifyChain recomputes every snapshot hash from its payload and predecessor.
func (db *DB) VerifyChain() error {
	rows, err := db.conn.Queryx("SELECT turn, raw_size, hash, prev_hash, data FROM snapshots ORDER BY turn")
	if err != nil {
		return err
	}
	defer rows.Close()

	prev := ""
	for rows.Next() {
		var s Snapshot
		if err := rows.StructScan(&s); err != nil {
			return err
		}
		if s.PrevHash != prev {
			return fmt.Errorf("turn %d: %w: links to %.12s, expected %.12s", s.Turn, ErrChainBroken, s.PrevHash, prev)
		}
		if got := ChainHash(s.Data, s.PrevHash); got != s.Hash {
			return fmt.Errorf("turn %d: %w: payload hash mismatch", s.Turn, ErrChainBroken)
		}
		prev = s.Hash
	}
	return rows.Err()
}
