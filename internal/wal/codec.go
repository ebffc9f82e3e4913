package wal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// encodeEntry renders one WalEntry as a single line: a single-byte tag
// followed by a canonical-JSON payload, base64-encoded so an embedded
// newline in a string field can never split a record across lines.
// The payload encoding is canonical JSON, chosen over a fixed binary
// layout for debuggability; the header record's version field covers
// any future change of that choice.
func encodeEntry(e types.WalEntry) (string, error) {
	var payload interface{}
	switch e.Kind {
	case types.WalHeader:
		payload = struct{ Version uint32 }{e.Version}
	case types.WalPlaceIntent:
		payload = e.Intent
	case types.WalFill:
		payload = e.Fill
	case types.WalCancel:
		payload = struct{ ClientOrderID string }{e.CancelID}
	case types.WalSnapshot:
		payload = struct {
			StrategyID string
			State      types.StrategyState
			StateHash  string
		}{e.SnapshotStrategyID, e.SnapshotState, e.StateHash}
	case types.WalRiskHalt:
		payload = struct{ Reason string }{e.HaltReason}
	case types.WalMark:
		payload = struct {
			Ts    int64
			Price float64
		}{e.MarkTs, e.MarkPrice}
	default:
		return "", fmt.Errorf("wal: unknown entry kind %q", e.Kind)
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("wal: encode %q: %w", e.Kind, err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf)
	return fmt.Sprintf("%c%s", e.Kind, encoded), nil
}

// decodeEntry parses one line into a WalEntry. A malformed line
// returns an error; the caller (Recover) decides whether that error is
// tolerable (a truncated trailing line) or fatal (a corrupt line mid-
// stream).
func decodeEntry(line string) (types.WalEntry, error) {
	if len(line) < 1 {
		return types.WalEntry{}, fmt.Errorf("wal: empty line")
	}
	kind := types.WalEntryKind(line[0])
	raw, err := base64.StdEncoding.DecodeString(line[1:])
	if err != nil {
		return types.WalEntry{}, fmt.Errorf("wal: bad base64 payload: %w", err)
	}

	e := types.WalEntry{Kind: kind}
	switch kind {
	case types.WalHeader:
		var p struct{ Version uint32 }
		if err := json.Unmarshal(raw, &p); err != nil {
			return types.WalEntry{}, err
		}
		e.Version = p.Version
	case types.WalPlaceIntent:
		if err := json.Unmarshal(raw, &e.Intent); err != nil {
			return types.WalEntry{}, err
		}
	case types.WalFill:
		if err := json.Unmarshal(raw, &e.Fill); err != nil {
			return types.WalEntry{}, err
		}
	case types.WalCancel:
		var p struct{ ClientOrderID string }
		if err := json.Unmarshal(raw, &p); err != nil {
			return types.WalEntry{}, err
		}
		e.CancelID = p.ClientOrderID
	case types.WalSnapshot:
		var p struct {
			StrategyID string
			State      types.StrategyState
			StateHash  string
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return types.WalEntry{}, err
		}
		e.SnapshotStrategyID = p.StrategyID
		e.SnapshotState = p.State
		e.StateHash = p.StateHash
	case types.WalRiskHalt:
		var p struct{ Reason string }
		if err := json.Unmarshal(raw, &p); err != nil {
			return types.WalEntry{}, err
		}
		e.HaltReason = p.Reason
	case types.WalMark:
		var p struct {
			Ts    int64
			Price float64
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return types.WalEntry{}, err
		}
		e.MarkTs = p.Ts
		e.MarkPrice = p.Price
	default:
		return types.WalEntry{}, fmt.Errorf("wal: unknown tag %q", kind)
	}
	return e, nil
}
