package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ExecMode enumerates the execution simulator presets.
type ExecMode string

const (
	ExecInstant   ExecMode = "instant"
	ExecMarket    ExecMode = "market"
	ExecLimit     ExecMode = "limit"
	ExecRealistic ExecMode = "realistic"
)

// Config is the flat, fully-resolved set of run parameters. Every
// field corresponds to one externally-settable key, and the field
// comment documents the unit.
type Config struct {
	Symbol     string // SYMBOL
	CandleSecs int64  // CANDLE_SECS, seconds per candle
	WarmupBars int    // WARMUP_BARS, candle count before indicators are Ready

	// Strategy thresholds
	OrderQty       float64 // ORDER_QTY, base-asset units per entry order
	EntryTh        float64 // ENTRY_TH, score units
	EdgeHurdle     float64 // EDGE_HURDLE, price fraction
	EdgeScale      float64 // EDGE_SCALE, multiplier applied to |score|
	TakeProfit     float64 // TAKE_PROFIT, price fraction
	StopLoss       float64 // STOP_LOSS, price fraction
	TimeStop       int64   // TIME_STOP, seconds held before a time exit
	MinHoldCandles int     // MIN_HOLD_CANDLES
	VolPauseMult   float64 // VOL_PAUSE_MULT, z_vol multiple that pauses entries
	StartDelay     int64   // warm-up delay at the start of a run, seconds
	FundingHigh    float64 // |funding_rate| threshold for carry entries
	FundingSpread  float64 // required funding/borrow spread for carry entries
	LiqTh          float64 // liquidation_score threshold
	DepegTh        float64 // |stable_depeg| threshold
	VolLow         float64 // vol_ratio below which momentum is followed
	VolHigh        float64 // vol_ratio above which mean-reversion is allowed

	// Risk gate
	MaxPosPct       float64 // MAX_POS_PCT, fraction of equity
	MaxDailyLossPct float64 // MAX_DAILY_LOSS_PCT, fraction of initial equity
	CooldownSecs    int64   // COOLDOWN_SECS after a losing trade
	MaxTradesDay    uint64  // MAX_TRADES_DAY
	DayBoundaryUTC  int64   // UTC offset seconds at which trading days roll
	KillFilePath    string  // KILL_FILE_PATH
	EmergencyKill   bool    // if true the kill file also blocks Close

	// Execution simulator
	FeeRate      float64  // FEE_RATE, fraction of notional
	SlipK        float64  // SLIP_K
	VolSlipMult  float64  // VOL_SLIP_MULT
	LatMin       float64  // LAT_MIN, seconds
	LatMax       float64  // LAT_MAX, seconds
	MaxFillRatio float64  // MAX_FILL_RATIO, fraction of original qty fillable per bar
	ExecMode     ExecMode // EXEC_MODE

	// WAL / bus
	WalPath          string // WAL_PATH
	FillChannelCap   int    // FILL_CHANNEL_CAP
	SnapshotInterval uint64 // SNAPSHOT_INTERVAL, events between snapshots

	InitialEquity float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Symbol:     "BTC-PERP",
		CandleSecs: 60,
		WarmupBars: 30,

		OrderQty:       0.01,
		EntryTh:        1.2,
		EdgeHurdle:     0.0003,
		EdgeScale:      0.01,
		TakeProfit:     0.02,
		StopLoss:       0.01,
		TimeStop:       3600,
		MinHoldCandles: 3,
		VolPauseMult:   2.5,
		StartDelay:     0,
		FundingHigh:    0.0005,
		FundingSpread:  0.0001,
		LiqTh:          0.7,
		DepegTh:        0.01,
		VolLow:         0.7,
		VolHigh:        1.5,

		MaxPosPct:       0.25,
		MaxDailyLossPct: 0.05,
		CooldownSecs:    1800,
		MaxTradesDay:    50,
		DayBoundaryUTC:  0,
		KillFilePath:    "/tmp/STOP",
		EmergencyKill:   false,

		FeeRate:      0.0004,
		SlipK:        0.1,
		VolSlipMult:  0.05,
		LatMin:       0.05,
		LatMax:       0.5,
		MaxFillRatio: 1.0,
		ExecMode:     ExecInstant,

		WalPath:          "./arbitragefx.wal",
		FillChannelCap:   256,
		SnapshotInterval: 1000,

		InitialEquity: 10000,
	}
}

// kv renders the config as key=value pairs, the form canonicalized and
// hashed for the config hash persisted with every run's result.
func (c Config) kv() map[string]string {
	return map[string]string{
		"SYMBOL":             c.Symbol,
		"CANDLE_SECS":        strconv.FormatInt(c.CandleSecs, 10),
		"WARMUP_BARS":        strconv.Itoa(c.WarmupBars),
		"ORDER_QTY":          formatFloat(c.OrderQty),
		"ENTRY_TH":           formatFloat(c.EntryTh),
		"EDGE_HURDLE":        formatFloat(c.EdgeHurdle),
		"EDGE_SCALE":         formatFloat(c.EdgeScale),
		"TAKE_PROFIT":        formatFloat(c.TakeProfit),
		"STOP_LOSS":          formatFloat(c.StopLoss),
		"TIME_STOP":          strconv.FormatInt(c.TimeStop, 10),
		"MIN_HOLD_CANDLES":   strconv.Itoa(c.MinHoldCandles),
		"VOL_PAUSE_MULT":     formatFloat(c.VolPauseMult),
		"START_DELAY":        strconv.FormatInt(c.StartDelay, 10),
		"FUNDING_HIGH":       formatFloat(c.FundingHigh),
		"FUNDING_SPREAD":     formatFloat(c.FundingSpread),
		"LIQ_TH":             formatFloat(c.LiqTh),
		"DEPEG_TH":           formatFloat(c.DepegTh),
		"VOL_LOW":            formatFloat(c.VolLow),
		"VOL_HIGH":           formatFloat(c.VolHigh),
		"MAX_POS_PCT":        formatFloat(c.MaxPosPct),
		"MAX_DAILY_LOSS_PCT": formatFloat(c.MaxDailyLossPct),
		"COOLDOWN_SECS":      strconv.FormatInt(c.CooldownSecs, 10),
		"MAX_TRADES_DAY":     strconv.FormatUint(c.MaxTradesDay, 10),
		"DAY_BOUNDARY_UTC":   strconv.FormatInt(c.DayBoundaryUTC, 10),
		"KILL_FILE_PATH":     c.KillFilePath,
		"EMERGENCY_KILL":     strconv.FormatBool(c.EmergencyKill),
		"FEE_RATE":           formatFloat(c.FeeRate),
		"SLIP_K":             formatFloat(c.SlipK),
		"VOL_SLIP_MULT":      formatFloat(c.VolSlipMult),
		"LAT_MIN":            formatFloat(c.LatMin),
		"LAT_MAX":            formatFloat(c.LatMax),
		"MAX_FILL_RATIO":     formatFloat(c.MaxFillRatio),
		"EXEC_MODE":          string(c.ExecMode),
		"WAL_PATH":           c.WalPath,
		"FILL_CHANNEL_CAP":   strconv.Itoa(c.FillChannelCap),
		"SNAPSHOT_INTERVAL":  strconv.FormatUint(c.SnapshotInterval, 10),
		"INITIAL_EQUITY":     formatFloat(c.InitialEquity),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Canonical renders the sorted key=value form used for hashing.
func (c Config) Canonical() string {
	kv := c.kv()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, kv[k])
	}
	return b.String()
}

// Hash returns the SHA-256 hex digest of the canonical config
// rendering, persisted alongside every run's result so two results
// can be checked for parameter equivalence without a deep compare.
func (c Config) Hash() string {
	sum := sha256.Sum256([]byte(c.Canonical()))
	return hex.EncodeToString(sum[:])
}
