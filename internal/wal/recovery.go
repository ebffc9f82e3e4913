package wal

import (
	"bufio"
	"fmt"
	"os"

	"github.com/uprootiny/arbitragefx/internal/portfolio"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

// RecoveredStrategy is one strategy's post-recovery state, the set of
// fills replayed against its snapshot, and any PlaceIntent entries left
// without a matching fill.
type RecoveredStrategy struct {
	State          types.StrategyState
	StateHash      string
	ReplayedFills  []types.Fill
	PendingIntents []types.Intent
}

// Recover implements the crash-recovery algorithm: find each
// strategy's last snapshot, verify its hash, replay the fill and mark
// records newer than that snapshot in WAL order, and surface unmatched
// PlaceIntent entries for the caller to reopen (live) or drop
// (backtest). dayBoundaryUTC must match the offset the writing run
// used, since mark replay re-runs the same day-roll bookkeeping. A
// corrupt line anywhere but the very end of the file is fatal
// (*types.WalCorruptError, mapping to exit code 3); a corrupt or
// truncated trailing line is tolerated and discarded.
func Recover(path string, dayBoundaryUTC int64) (map[string]*RecoveredStrategy, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*RecoveredStrategy{}, nil
		}
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := readAllLines(f)
	if err != nil {
		return nil, err
	}

	entries := make([]types.WalEntry, 0, len(lines))
	for i, line := range lines {
		e, err := decodeEntry(line)
		if err != nil {
			if i == len(lines)-1 {
				// Truncated/corrupt trailing line: tolerated, discarded.
				break
			}
			return nil, &types.WalCorruptError{Offset: int64(i), Reason: err.Error()}
		}
		entries = append(entries, e)
	}

	// Last snapshot per strategy, in WAL order (later overwrites earlier).
	lastSnapshot := make(map[string]types.WalEntry)
	lastSnapshotIdx := make(map[string]int)
	for i, e := range entries {
		if e.Kind == types.WalSnapshot {
			lastSnapshot[e.SnapshotStrategyID] = e
			lastSnapshotIdx[e.SnapshotStrategyID] = i
		}
	}

	// Every PlaceIntent's client_order_id, so we can tell which never
	// received a matching fill.
	placedByStrategy := make(map[string][]types.Intent)
	filledIDs := make(map[string]bool)
	for _, e := range entries {
		switch e.Kind {
		case types.WalPlaceIntent:
			placedByStrategy[e.Intent.StrategyID] = append(placedByStrategy[e.Intent.StrategyID], e.Intent)
		case types.WalFill:
			filledIDs[e.Fill.ClientOrderID] = true
		case types.WalCancel:
			// A canceled order is terminal whether or not its zero-qty
			// ack was persisted; never reopen it.
			filledIDs[e.CancelID] = true
		}
	}

	out := make(map[string]*RecoveredStrategy)
	for id, snap := range lastSnapshot {
		state := snap.SnapshotState
		gotHash := StateHash(state)
		if gotHash != snap.StateHash {
			return nil, &types.WalCorruptError{
				Offset: int64(lastSnapshotIdx[id]),
				Reason: fmt.Sprintf("snapshot hash mismatch for strategy %s: recorded %s, recomputed %s", id, snap.StateHash, gotHash),
			}
		}

		rs := &RecoveredStrategy{State: state, StateHash: gotHash}

		// Replay mark and fill records after the snapshot, in WAL
		// order — the exact mutation order the writing run applied.
		snapIdx := lastSnapshotIdx[id]
		var laterSnapshotHash string
		for i := snapIdx + 1; i < len(entries); i++ {
			e := entries[i]
			switch {
			case e.Kind == types.WalMark:
				portfolio.RollDay(&rs.State, e.MarkTs, dayBoundaryUTC)
				portfolio.UpdateMark(&rs.State, e.MarkPrice)
			case e.Kind == types.WalPlaceIntent && e.Intent.StrategyID == id && e.Intent.Forced:
				rs.State.ForcedCloses++
			case e.Kind == types.WalFill && e.Fill.StrategyID == id:
				if e.Fill.Qty != 0 {
					portfolio.ApplyFill(&rs.State, e.Fill)
					portfolio.UpdateMark(&rs.State, e.Fill.Price)
					rs.ReplayedFills = append(rs.ReplayedFills, e.Fill)
				}
			case e.Kind == types.WalSnapshot && e.SnapshotStrategyID == id:
				laterSnapshotHash = e.StateHash
			}
		}
		rs.StateHash = StateHash(rs.State)

		if laterSnapshotHash != "" && laterSnapshotHash != rs.StateHash {
			return nil, &types.WalCorruptError{
				Offset: int64(snapIdx),
				Reason: fmt.Sprintf("post-replay hash mismatch for strategy %s: expected %s, got %s", id, laterSnapshotHash, rs.StateHash),
			}
		}

		for _, intent := range placedByStrategy[id] {
			if !filledIDs[intent.ClientOrderID] {
				rs.PendingIntents = append(rs.PendingIntents, intent)
			}
		}

		out[id] = rs
	}

	return out, nil
}

func readAllLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wal: scan: %w", err)
	}
	return lines, nil
}
