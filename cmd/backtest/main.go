// Command backtest drives the deterministic reducer core (internal/engine)
// over a CSV candle file and prints a types.BacktestResult as JSON.
// It is the only executable entrypoint in the module; there is no
// long-lived server process, only a single run from first candle to
// EOF (or a risk halt / data error / WAL corruption, each mapped to
// its own process exit code).
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uprootiny/arbitragefx/internal/config"
	"github.com/uprootiny/arbitragefx/internal/csvsource"
	"github.com/uprootiny/arbitragefx/internal/engine"
	"github.com/uprootiny/arbitragefx/internal/metrics"
	"github.com/uprootiny/arbitragefx/internal/report"
	"github.com/uprootiny/arbitragefx/internal/strategy"
	"github.com/uprootiny/arbitragefx/internal/wal"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataPath := flag.String("data", "", "CSV candle file (required)")
	configPath := flag.String("config", "", "optional TOML config file")
	walPath := flag.String("wal", "", "override WAL_PATH from config")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	reopenPending := flag.Bool("reopen-pending", false, "reopen unmatched WAL intents on recovery instead of dropping them")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	if *dataPath == "" {
		logger.Error("missing required -data flag")
		return int(types.ExitFatal)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", zap.Error(err))
		return int(types.ExitFatal)
	}
	if *walPath != "" {
		cfg.WalPath = *walPath
	}

	runID := uuid.New().String()
	logger.Info("starting backtest run",
		zap.String("run_id", runID),
		zap.String("symbol", cfg.Symbol),
		zap.String("config_hash", cfg.Hash()),
		zap.String("data", *dataPath))

	registry := prometheus.NewRegistry()
	collectors := metrics.New()
	collectors.MustRegister(registry)

	exitCode, result := execute(cfg, *dataPath, *reopenPending, collectors, logger)
	result.RunID = runID
	result.ExitCode = int(exitCode)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		logger.Error("failed to encode result", zap.Error(encErr))
		return int(types.ExitFatal)
	}
	return int(exitCode)
}

// execute owns the full run: recovery, candle ingestion, shutdown
// snapshot, and report assembly. It always returns a usable
// (possibly partial) BacktestResult alongside the exit code, so a
// caller gets a report even on a risk halt or data error mid-run.
func execute(cfg types.Config, dataPath string, reopenPending bool, collectors *metrics.Collectors, logger *zap.Logger) (types.ExitCode, types.BacktestResult) {
	startedAt := timeNow()
	result := types.BacktestResult{ConfigHash: cfg.Hash(), StartedAt: startedAt}

	recovered, err := wal.Recover(cfg.WalPath, cfg.DayBoundaryUTC)
	if err != nil {
		logger.Error("wal recovery failed", zap.Error(err))
		return exitCodeFor(err), result
	}
	if len(recovered) > 0 {
		logger.Info("recovered strategies from WAL", zap.Int("count", len(recovered)))
	}

	walw, err := wal.Open(cfg.WalPath)
	if err != nil {
		logger.Error("failed to open WAL", zap.Error(err))
		return types.ExitFatal, result
	}
	defer walw.Close()

	f, err := os.Open(dataPath)
	if err != nil {
		logger.Error("failed to open data file", zap.Error(err))
		return types.ExitDataError, result
	}
	defer f.Close()

	src, err := csvsource.Open(f, dataPath)
	if err != nil {
		logger.Error("failed to open candle source", zap.Error(err))
		return exitCodeFor(err), result
	}

	rl := engine.New(cfg, cfg.Symbol, walw, logger, collectors)
	rl.RegisterStrategy(strategy.NewMomentum(), cfg.InitialEquity, 0)
	rl.RegisterStrategy(strategy.NewCarry(), cfg.InitialEquity, 0)
	rl.Restore(recovered, reopenPending)

	equityCurves := make(map[string][]types.EquityCurvePoint)
	var totalFills uint64
	var firstClose, lastClose float64

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("candle ingestion failed", zap.Error(err))
			result.CompletedAt = timeNow()
			return exitCodeFor(err), finish(cfg, rl, equityCurves, result)
		}

		if _, statErr := os.Stat(cfg.KillFilePath); cfg.KillFilePath != "" && statErr == nil {
			logger.Warn("kill file present, halting run", zap.String("path", cfg.KillFilePath))
			if err := rl.Shutdown(); err != nil {
				logger.Error("shutdown snapshot failed", zap.Error(err))
			}
			result.CompletedAt = timeNow()
			return types.ExitRiskHalt, finish(cfg, rl, equityCurves, result)
		}

		fills, err := rl.OnCandle(row.Candle, row.Aux)
		if err != nil {
			logger.Error("run loop error", zap.Error(err))
			result.CompletedAt = timeNow()
			return exitCodeFor(err), finish(cfg, rl, equityCurves, result)
		}
		totalFills += uint64(len(fills))

		result.CandleCount++
		if firstClose == 0 {
			firstClose = row.Candle.Close
		}
		lastClose = row.Candle.Close

		for _, id := range rl.StrategyIDs() {
			state, _ := rl.Strategy(id)
			equityCurves[id] = append(equityCurves[id], types.EquityCurvePoint{
				Ts:       row.Candle.Ts,
				Equity:   decimal.NewFromFloat(state.Equity),
				Cash:     decimal.NewFromFloat(state.Cash),
				Drawdown: decimal.NewFromFloat(state.MaxDrawdown),
			})
		}
	}

	if firstClose != 0 {
		result.BuyHoldPnL = decimal.NewFromFloat(cfg.InitialEquity * (lastClose/firstClose - 1))
	}

	if err := rl.Shutdown(); err != nil {
		logger.Error("shutdown snapshot failed", zap.Error(err))
		result.CompletedAt = timeNow()
		return exitCodeFor(err), finish(cfg, rl, equityCurves, result)
	}

	result.CompletedAt = timeNow()

	if halted, reason := rl.Halted(); halted {
		var forced uint64
		for _, id := range rl.StrategyIDs() {
			state, _ := rl.Strategy(id)
			forced += state.ForcedCloses
			logger.Warn("final strategy state",
				zap.String("strategy", id),
				zap.String("state_hash", wal.StateHash(*state)),
				zap.Float64("position", state.Position))
		}
		logger.Warn("run ended in risk halt",
			zap.String("reason", reason),
			zap.Uint64("forced_closes", forced),
			zap.Uint64("wal_events", rl.EventsProcessed()))
		return types.ExitRiskHalt, finish(cfg, rl, equityCurves, result)
	}

	logger.Info("backtest run complete",
		zap.Uint64("events_processed", rl.EventsProcessed()),
		zap.Uint64("fills", totalFills))
	return types.ExitClean, finish(cfg, rl, equityCurves, result)
}

// finish assembles the final BacktestResult from whatever state the
// run loop reached, whether it ran to completion or stopped early on
// an error.
func finish(cfg types.Config, rl *engine.RunLoop, equityCurves map[string][]types.EquityCurvePoint, partial types.BacktestResult) types.BacktestResult {
	fillsByStrategy := make(map[string][]types.Fill)
	for _, ev := range rl.Log() {
		if ev.Fill == nil {
			continue
		}
		fillsByStrategy[ev.Fill.StrategyID] = append(fillsByStrategy[ev.Fill.StrategyID], *ev.Fill)
	}

	inputs := make([]report.StrategyInput, 0, len(rl.StrategyIDs()))
	for _, id := range rl.StrategyIDs() {
		state, _ := rl.Strategy(id)
		inputs = append(inputs, report.StrategyInput{
			StrategyID:  id,
			FinalState:  *state,
			StateHash:   wal.StateHash(*state),
			Fills:       fillsByStrategy[id],
			EquityCurve: equityCurves[id],
		})
	}

	built := report.BuildResult(cfg, inputs, rl.EventsProcessed(), partial.StartedAt, partial.CompletedAt, partial.ExitCode)
	built.RunID = partial.RunID
	built.CandleCount = partial.CandleCount
	built.BuyHoldPnL = partial.BuyHoldPnL
	return built
}

// exitCodeFor maps any error returned by the deterministic core to a
// process exit code via types.ExitCoder; unrecognized errors are fatal.
func exitCodeFor(err error) types.ExitCode {
	var coder types.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return types.ExitFatal
}

func timeNow() time.Time { return time.Now() }

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("logger build failed: %v", err))
	}
	return logger
}
