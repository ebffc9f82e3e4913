// Package config loads a types.Config from environment variables and,
// optionally, a TOML file, via github.com/spf13/viper. Only the flat
// key=value contract matters here; deep TOML-specific behavior
// (includes, profiles, nested tables) is deliberately unsupported.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// Load builds a types.Config from environment variables (and tomlPath,
// if non-empty), layered over the documented defaults. Every key in
// the critical set is bound explicitly so `viper.AutomaticEnv` alone
// never silently misses one.
func Load(tomlPath string) (types.Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := types.DefaultConfig()
	setDefaults(v, def)

	for _, key := range criticalKeys {
		_ = v.BindEnv(key)
	}

	if tomlPath != "" {
		v.SetConfigFile(tomlPath)
		if err := v.ReadInConfig(); err != nil {
			return types.Config{}, err
		}
	}

	return types.Config{
		Symbol:     v.GetString("SYMBOL"),
		CandleSecs: v.GetInt64("CANDLE_SECS"),
		WarmupBars: v.GetInt("WARMUP_BARS"),

		OrderQty:       v.GetFloat64("ORDER_QTY"),
		EntryTh:        v.GetFloat64("ENTRY_TH"),
		EdgeHurdle:     v.GetFloat64("EDGE_HURDLE"),
		EdgeScale:      v.GetFloat64("EDGE_SCALE"),
		TakeProfit:     v.GetFloat64("TAKE_PROFIT"),
		StopLoss:       v.GetFloat64("STOP_LOSS"),
		TimeStop:       v.GetInt64("TIME_STOP"),
		MinHoldCandles: v.GetInt("MIN_HOLD_CANDLES"),
		VolPauseMult:   v.GetFloat64("VOL_PAUSE_MULT"),
		StartDelay:     v.GetInt64("START_DELAY"),
		FundingHigh:    v.GetFloat64("FUNDING_HIGH"),
		FundingSpread:  v.GetFloat64("FUNDING_SPREAD"),
		LiqTh:          v.GetFloat64("LIQ_TH"),
		DepegTh:        v.GetFloat64("DEPEG_TH"),
		VolLow:         v.GetFloat64("VOL_LOW"),
		VolHigh:        v.GetFloat64("VOL_HIGH"),

		MaxPosPct:       v.GetFloat64("MAX_POS_PCT"),
		MaxDailyLossPct: v.GetFloat64("MAX_DAILY_LOSS_PCT"),
		CooldownSecs:    v.GetInt64("COOLDOWN_SECS"),
		MaxTradesDay:    uint64(v.GetInt64("MAX_TRADES_DAY")),
		DayBoundaryUTC:  v.GetInt64("DAY_BOUNDARY_UTC"),
		KillFilePath:    v.GetString("KILL_FILE_PATH"),
		EmergencyKill:   v.GetBool("EMERGENCY_KILL"),

		FeeRate:      v.GetFloat64("FEE_RATE"),
		SlipK:        v.GetFloat64("SLIP_K"),
		VolSlipMult:  v.GetFloat64("VOL_SLIP_MULT"),
		LatMin:       v.GetFloat64("LAT_MIN"),
		LatMax:       v.GetFloat64("LAT_MAX"),
		MaxFillRatio: v.GetFloat64("MAX_FILL_RATIO"),
		ExecMode:     types.ExecMode(v.GetString("EXEC_MODE")),

		WalPath:          v.GetString("WAL_PATH"),
		FillChannelCap:   v.GetInt("FILL_CHANNEL_CAP"),
		SnapshotInterval: uint64(v.GetInt64("SNAPSHOT_INTERVAL")),

		InitialEquity: v.GetFloat64("INITIAL_EQUITY"),
	}, nil
}

// criticalKeys is the full externally-settable key set — everything
// Config.kv() hashes, including the funding/liq/depeg/regime
// thresholds behind the momentum decision tree's overlay branches.
var criticalKeys = []string{
	"SYMBOL", "CANDLE_SECS", "WARMUP_BARS", "ORDER_QTY", "ENTRY_TH", "EDGE_HURDLE", "EDGE_SCALE",
	"TAKE_PROFIT", "STOP_LOSS", "TIME_STOP", "MIN_HOLD_CANDLES", "MAX_POS_PCT",
	"MAX_DAILY_LOSS_PCT", "COOLDOWN_SECS", "MAX_TRADES_DAY", "VOL_PAUSE_MULT",
	"FEE_RATE", "SLIP_K", "VOL_SLIP_MULT", "LAT_MIN", "LAT_MAX", "MAX_FILL_RATIO",
	"WAL_PATH", "FILL_CHANNEL_CAP", "SNAPSHOT_INTERVAL", "KILL_FILE_PATH", "EXEC_MODE",
	"START_DELAY", "FUNDING_HIGH", "FUNDING_SPREAD", "LIQ_TH", "DEPEG_TH",
	"VOL_LOW", "VOL_HIGH", "DAY_BOUNDARY_UTC", "EMERGENCY_KILL", "INITIAL_EQUITY",
}

func setDefaults(v *viper.Viper, def types.Config) {
	v.SetDefault("SYMBOL", def.Symbol)
	v.SetDefault("CANDLE_SECS", def.CandleSecs)
	v.SetDefault("WARMUP_BARS", def.WarmupBars)
	v.SetDefault("ORDER_QTY", def.OrderQty)
	v.SetDefault("ENTRY_TH", def.EntryTh)
	v.SetDefault("EDGE_HURDLE", def.EdgeHurdle)
	v.SetDefault("EDGE_SCALE", def.EdgeScale)
	v.SetDefault("TAKE_PROFIT", def.TakeProfit)
	v.SetDefault("STOP_LOSS", def.StopLoss)
	v.SetDefault("TIME_STOP", def.TimeStop)
	v.SetDefault("MIN_HOLD_CANDLES", def.MinHoldCandles)
	v.SetDefault("VOL_PAUSE_MULT", def.VolPauseMult)
	v.SetDefault("START_DELAY", def.StartDelay)
	v.SetDefault("FUNDING_HIGH", def.FundingHigh)
	v.SetDefault("FUNDING_SPREAD", def.FundingSpread)
	v.SetDefault("LIQ_TH", def.LiqTh)
	v.SetDefault("DEPEG_TH", def.DepegTh)
	v.SetDefault("VOL_LOW", def.VolLow)
	v.SetDefault("VOL_HIGH", def.VolHigh)
	v.SetDefault("MAX_POS_PCT", def.MaxPosPct)
	v.SetDefault("MAX_DAILY_LOSS_PCT", def.MaxDailyLossPct)
	v.SetDefault("COOLDOWN_SECS", def.CooldownSecs)
	v.SetDefault("MAX_TRADES_DAY", def.MaxTradesDay)
	v.SetDefault("DAY_BOUNDARY_UTC", def.DayBoundaryUTC)
	v.SetDefault("KILL_FILE_PATH", def.KillFilePath)
	v.SetDefault("EMERGENCY_KILL", def.EmergencyKill)
	v.SetDefault("FEE_RATE", def.FeeRate)
	v.SetDefault("SLIP_K", def.SlipK)
	v.SetDefault("VOL_SLIP_MULT", def.VolSlipMult)
	v.SetDefault("LAT_MIN", def.LatMin)
	v.SetDefault("LAT_MAX", def.LatMax)
	v.SetDefault("MAX_FILL_RATIO", def.MaxFillRatio)
	v.SetDefault("EXEC_MODE", string(def.ExecMode))
	v.SetDefault("WAL_PATH", def.WalPath)
	v.SetDefault("FILL_CHANNEL_CAP", def.FillChannelCap)
	v.SetDefault("SNAPSHOT_INTERVAL", def.SnapshotInterval)
	v.SetDefault("INITIAL_EQUITY", def.InitialEquity)
}
