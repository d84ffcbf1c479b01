package persistence

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/trade"
)

// SnapshotState is the full system image stored in each snapshot blob.
type SnapshotState struct {
	Day       uint64           `json:"day"`
	Score     float64          `json:"score"`
	Planets   []*planet.Planet `json:"planets"`
	Transfers []trade.Transfer `json:"transfers"`
}

func compressLZ4(src []byte) []byte {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	zw.Write(src)
	zw.Close()
	return buf.Bytes()
}

func decompressLZ4(src []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}

func hashBLAKE3(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EnsureRunID returns the stable identity of this saved system,
// creating it on first boot. The run's genesis hash anchors the
// snapshot chain.
func (db *DB) EnsureRunID() (string, error) {
	runID, err := db.GetMeta("run_id")
	if err == nil {
		return runID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read run id: %w", err)
	}

	runID = uuid.NewString()
	genesis := hashBLAKE3([]byte("genesis-" + runID))

	if err := db.SaveMeta("run_id", runID); err != nil {
		return "", err
	}
	if err := db.SaveMeta("genesis_hash", genesis); err != nil {
		return "", err
	}

	slog.Info("first boot, run identity created", "run_id", runID)
	return runID, nil
}

func (db *DB) genesisHash() (string, error) {
	return db.GetMeta("genesis_hash")
}

// Snapshot stores a compressed image of the full system state, chained
// to the previous snapshot by hash so tampering with history is
// detectable.
func (db *DB) Snapshot(sim *engine.Simulation) error {
	state := SnapshotState{
		Day:       sim.Day,
		Score:     sim.Score,
		Planets:   sim.Planets,
		Transfers: sim.Ledger.Transfers(),
	}
	rawJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed := compressLZ4(rawJSON)

	// Chain to the latest strictly earlier snapshot, so re-snapshotting
	// the same day replaces the row without breaking the chain.
	var prevHash string
	err = db.conn.Get(&prevHash,
		"SELECT final_hash FROM daily_snapshots WHERE day_id < ? ORDER BY day_id DESC LIMIT 1",
		sim.Day)
	if err != nil {
		prevHash, err = db.genesisHash()
		if err != nil {
			return fmt.Errorf("no genesis hash, call EnsureRunID first: %w", err)
		}
	}

	combined := append(compressed, []byte(prevHash)...)
	finalHash := hashBLAKE3(combined)

	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO daily_snapshots (day_id, state_blob, final_hash) VALUES (?, ?, ?)",
		sim.Day, compressed, finalHash,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	slog.Info("snapshot stored", "day", sim.Day, "bytes", len(compressed), "hash", finalHash[:12])
	return nil
}

// LoadSnapshot decodes the snapshot taken at the given day.
func (db *DB) LoadSnapshot(day uint64) (*SnapshotState, error) {
	var blob []byte
	err := db.conn.Get(&blob,
		"SELECT state_blob FROM daily_snapshots WHERE day_id = ?", day)
	if err != nil {
		return nil, fmt.Errorf("load snapshot day %d: %w", day, err)
	}

	rawJSON, err := decompressLZ4(blob)
	if err != nil {
		return nil, err
	}

	var state SnapshotState
	if err := json.Unmarshal(rawJSON, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot day %d: %w", day, err)
	}
	return &state, nil
}

type snapshotRow struct {
	DayID     uint64 `db:"day_id"`
	StateBlob []byte `db:"state_blob"`
	FinalHash string `db:"final_hash"`
}

// VerifyChain recomputes the snapshot hash chain from genesis and
// returns the number of verified snapshots. A mismatch anywhere stops
// the walk with an error naming the first bad day.
func (db *DB) VerifyChain() (int, error) {
	prev, err := db.genesisHash()
	if err != nil {
		return 0, fmt.Errorf("no genesis hash: %w", err)
	}

	var rows []snapshotRow
	if err := db.conn.Select(&rows,
		"SELECT day_id, state_blob, final_hash FROM daily_snapshots ORDER BY day_id"); err != nil {
		return 0, err
	}

	for i, r := range rows {
		combined := append(append([]byte{}, r.StateBlob...), []byte(prev)...)
		recomputed := hashBLAKE3(combined)
		if recomputed != r.FinalHash {
			return i, fmt.Errorf("snapshot chain broken at day %d", r.DayID)
		}
		prev = recomputed
	}

	return len(rows), nil
}
