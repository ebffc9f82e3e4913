// Package csvsource ingests the 11-column CSV candle format:
// ts,open,high,low,close,volume,funding,borrow,liq,depeg,oi. An empty
// or "NaN" auxiliary field means the signal is absent for that bar
// (HasX=false), never a zero reading. Validation covers chronological
// order, duplicate detection, and OHLC consistency; every rejection
// carries the file name and line number.
package csvsource

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

var errNonFiniteOHLCV = errors.New("non-finite OHLCV value")

var header = []string{
	"ts", "open", "high", "low", "close", "volume",
	"funding", "borrow", "liq", "depeg", "oi",
}

// Row is one ingested candle paired with its auxiliary bundle.
type Row struct {
	Candle types.Candle
	Aux    types.AuxBundle
}

// Source streams Rows from an underlying CSV reader, enforcing a
// strictly increasing ts and rejecting malformed rows with a
// *types.DataError.
type Source struct {
	r        *csv.Reader
	name     string
	lastTs   int64
	hasLast  bool
	lineNo   int
}

// Open wraps r (already positioned at the start of the file) as a
// Source, validating the header line immediately.
func Open(r io.Reader, name string) (*Source, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if err != nil {
		return nil, &types.DataError{Source: name, Reason: "missing header: " + err.Error()}
	}
	if len(got) != len(header) {
		return nil, &types.DataError{Source: name, Reason: "header has wrong column count"}
	}
	for i, h := range header {
		if got[i] != h {
			return nil, &types.DataError{Source: name, Reason: "header column " + strconv.Itoa(i) + " expected " + h + " got " + got[i]}
		}
	}

	return &Source{r: cr, name: name, lineNo: 1}, nil
}

// Next returns the next validated row, io.EOF when the stream is
// exhausted, or a *types.DataError for a malformed/non-monotonic row.
func (s *Source) Next() (Row, error) {
	rec, err := s.r.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, &types.DataError{Source: s.name, Reason: "csv parse error: " + err.Error()}
	}
	s.lineNo++

	row, err := parseRow(rec)
	if err != nil {
		return Row{}, &types.DataError{Source: s.name, Reason: "line " + strconv.Itoa(s.lineNo) + ": " + err.Error()}
	}

	if s.hasLast && row.Candle.Ts <= s.lastTs {
		return Row{}, &types.DataError{Source: s.name, Reason: "non-monotonic ts at line " + strconv.Itoa(s.lineNo)}
	}
	if row.Candle.High < row.Candle.Low {
		return Row{}, &types.DataError{Source: s.name, Reason: "high < low at line " + strconv.Itoa(s.lineNo)}
	}
	if row.Candle.Close > row.Candle.High || row.Candle.Close < row.Candle.Low {
		return Row{}, &types.DataError{Source: s.name, Reason: "close outside [low, high] at line " + strconv.Itoa(s.lineNo)}
	}
	if row.Candle.Open > row.Candle.High || row.Candle.Open < row.Candle.Low {
		return Row{}, &types.DataError{Source: s.name, Reason: "open outside [low, high] at line " + strconv.Itoa(s.lineNo)}
	}

	s.lastTs = row.Candle.Ts
	s.hasLast = true
	return row, nil
}

func parseRow(rec []string) (Row, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Row{}, err
	}
	open, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return Row{}, err
	}
	high, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return Row{}, err
	}
	low, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, err
	}
	closePx, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Row{}, err
	}
	volume, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return Row{}, err
	}
	for _, v := range [5]float64{open, high, low, closePx, volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Row{}, errNonFiniteOHLCV
		}
	}

	aux := types.AuxBundle{}
	if v, ok, err := parseOptional(rec[6]); err != nil {
		return Row{}, err
	} else if ok {
		aux.FundingRate, aux.HasFunding, aux.FundingAsOf = v, true, ts
	}
	if v, ok, err := parseOptional(rec[7]); err != nil {
		return Row{}, err
	} else if ok {
		aux.BorrowRate, aux.HasBorrow, aux.BorrowAsOf = v, true, ts
	}
	if v, ok, err := parseOptional(rec[8]); err != nil {
		return Row{}, err
	} else if ok {
		aux.LiquidationScore, aux.HasLiquidation, aux.LiquidationAsOf = v, true, ts
	}
	if v, ok, err := parseOptional(rec[9]); err != nil {
		return Row{}, err
	} else if ok {
		aux.StableDepeg, aux.HasDepeg, aux.DepegAsOf = v, true, ts
	}
	if v, ok, err := parseOptional(rec[10]); err != nil {
		return Row{}, err
	} else if ok {
		aux.OpenInterest, aux.HasOI, aux.OIAsOf = v, true, ts
	}

	return Row{
		Candle: types.Candle{Ts: ts, Open: open, High: high, Low: low, Close: closePx, Volume: volume},
		Aux:    aux,
	}, nil
}

// parseOptional treats an empty field or the literal "NaN" as absent,
// never as zero.
func parseOptional(field string) (value float64, present bool, err error) {
	if field == "" || field == "NaN" || field == "nan" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}
