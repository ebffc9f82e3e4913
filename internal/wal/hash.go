// Package wal implements the write-ahead log: append-before-apply
// durability for intents and fills, periodic per-strategy snapshots,
// and a recovery algorithm that restores a strategy's state and
// verifies it against the hash recorded at snapshot time.
package wal

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// StateHash computes a deterministic, stable digest of a strategy's
// state: every numeric field serialized as IEEE-754 bits in
// little-endian, in a fixed field order, hashed with SHA-256 and
// truncated to 128 bits (32 hex characters) for display. Two processes
// on two machines with the same state must produce the same string.
func StateHash(s types.StrategyState) string {
	h := sha256.New()

	writeString(h, s.ID)
	writeFloat(h, s.Position)
	writeFloat(h, s.EntryPrice)
	writeFloat(h, s.Cash)
	writeFloat(h, s.Equity)
	writeFloat(h, s.RealizedPnL)
	writeUint(h, s.Wins)
	writeUint(h, s.Losses)
	writeFloat(h, s.OpenTripPnL)
	writeString(h, s.LastOrderID)
	writeInt(h, s.LastTradeTs)
	writeInt(h, s.LastLossTs)
	writeUint(h, s.TradesToday)
	writeInt(h, s.StartTs)
	writeInt(h, s.DayBoundary)
	writeFloat(h, s.PeakEquity)
	writeFloat(h, s.MaxDrawdown)
	writeUint(h, s.ForcedCloses)

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func writeFloat(h hash.Hash, f float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	h.Write(buf[:])
}

func writeInt(h hash.Hash, i int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	h.Write(buf[:])
}

func writeUint(h hash.Hash, u uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}
