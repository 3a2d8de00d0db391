package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// TurnLog appends one JSON line per record to zstd-compressed files, starting a new file
// every Rotate turns.
type TurnLog struct {
	dir    string
	prefix string
	rotate uint64

	mu      sync.Mutex
	segment uint64
	open    bool
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// TurnLogEntry is one logged turn.
type TurnLogEntry struct {
	Campaign string `json:"campaign"`
	Turn     uint64 `json:"turn"`
	Results  any    `json:"results"`
}

// NewTurnLog writes into dir. rotate = 0 keeps a single file per run.
func NewTurnLog(dir, prefix string, rotate uint64) *TurnLog {
	return &TurnLog{dir: dir, prefix: prefix, rotate: rotate}
}

// Write appends e to the segment that holds its turn.
func (l *TurnLog) Write(e TurnLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seg := uint64(0)
	if l.rotate > 0 {
		seg = e.Turn / l.rotate
	}
	if !l.open || seg != l.segment {
		if err := l.rotateLocked(seg, e.Turn); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the current segment.
func (l *TurnLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *TurnLog) rotateLocked(seg, turn uint64) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.dir, fmt.Sprintf("%s-%08d.jsonl.zst", l.prefix, turn))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.segment = seg
	l.open = true
	return nil
}

func (l *TurnLog) closeLocked() error {
	var err error
	if l.w != nil {
		err = l.w.Flush()
	}
	if l.enc != nil {
		err = errors.Join(err, l.enc.Close())
		l.enc = nil
	}
	if l.f != nil {
		err = errors.Join(err, l.f.Close())
		l.f = nil
	}
	l.w = nil
	l.open = false
	return err
}

// ReadTurnLog decodes every entry in one segment file. Results are left as raw JSON.
func ReadTurnLog(path string) ([]RawTurnLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []RawTurnLogEntry
	jd := json.NewDecoder(dec)
	for {
		var e RawTurnLogEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, e)
	}
}

// RawTurnLogEntry is a TurnLogEntry read back from disk.
type RawTurnLogEntry struct {
	Campaign string          `json:"campaign"`
	Turn     uint64          `json:"turn"`
	Results  json.RawMessage `json:"results"`
}
