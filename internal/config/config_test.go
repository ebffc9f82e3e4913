package config_test

import (
	"strings"
	"testing"

	"github.com/uprootiny/arbitragefx/internal/config"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func TestLoadDefaultsMatchSpec(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	def := types.DefaultConfig()
	if cfg.WarmupBars != def.WarmupBars {
		t.Fatalf("WarmupBars = %d, want %d", cfg.WarmupBars, def.WarmupBars)
	}
	if cfg.SnapshotInterval != def.SnapshotInterval {
		t.Fatalf("SnapshotInterval = %d, want %d", cfg.SnapshotInterval, def.SnapshotInterval)
	}
	if cfg.FillChannelCap != def.FillChannelCap {
		t.Fatalf("FillChannelCap = %d, want %d", cfg.FillChannelCap, def.FillChannelCap)
	}
	if cfg.ExecMode != def.ExecMode {
		t.Fatalf("ExecMode = %q, want %q", cfg.ExecMode, def.ExecMode)
	}
	if cfg.OrderQty != def.OrderQty {
		t.Fatalf("OrderQty = %v, want %v", cfg.OrderQty, def.OrderQty)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("ENTRY_TH", "2.75")
	t.Setenv("SYMBOL", "ETH-PERP")
	t.Setenv("EMERGENCY_KILL", "true")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EntryTh != 2.75 {
		t.Fatalf("EntryTh = %v, want env override 2.75", cfg.EntryTh)
	}
	if cfg.Symbol != "ETH-PERP" {
		t.Fatalf("Symbol = %q, want env override", cfg.Symbol)
	}
	if !cfg.EmergencyKill {
		t.Fatalf("EmergencyKill env override not applied")
	}
}

// The config hash identifies a run: identical configs hash identically,
// and any single key change must change the hash.
func TestConfigHashStability(t *testing.T) {
	a := types.DefaultConfig()
	b := types.DefaultConfig()
	if a.Hash() != b.Hash() {
		t.Fatalf("identical configs must hash identically")
	}

	b.EntryTh = a.EntryTh + 0.1
	if a.Hash() == b.Hash() {
		t.Fatalf("changing ENTRY_TH must change the config hash")
	}
}

func TestCanonicalRenderingIsSorted(t *testing.T) {
	canon := types.DefaultConfig().Canonical()
	var prevKey string
	for _, line := range strings.Split(strings.TrimSuffix(canon, "\n"), "\n") {
		key, _, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("canonical line missing '=': %q", line)
		}
		if prevKey != "" && key <= prevKey {
			t.Fatalf("canonical keys out of order: %q after %q", key, prevKey)
		}
		prevKey = key
	}
}
