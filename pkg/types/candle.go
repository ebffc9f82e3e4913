// Package types provides the canonical data model shared across the
// ArbitrageFX engine: candles, auxiliary market signals, strategy state,
// orders, fills, and the wire/report shapes built on top of them.
package types

// Candle is an immutable OHLCV record. Ts is epoch seconds and must be
// strictly increasing within a symbol's stream; duplicates are rejected
// by the ingress, not by Candle itself.
type Candle struct {
	Ts     int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// AuxBundle carries derivative-market auxiliary signals alongside a
// candle. Each field is paired with a presence flag and an as-of
// timestamp; missing data is distinct from a zero value, and the
// presence flag is authoritative — callers must never infer freshness
// from the numeric value alone.
type AuxBundle struct {
	FundingRate float64
	HasFunding  bool
	FundingAsOf int64

	BorrowRate float64
	HasBorrow  bool
	BorrowAsOf int64

	LiquidationScore float64
	HasLiquidation   bool
	LiquidationAsOf  int64

	StableDepeg float64
	HasDepeg    bool
	DepegAsOf   int64

	OpenInterest float64
	HasOI        bool
	OIAsOf       int64
}

// EmptyAuxBundle returns an AuxBundle with every field absent, used when no
// auxiliary data has ever arrived for a symbol.
func EmptyAuxBundle() AuxBundle {
	return AuxBundle{}
}
