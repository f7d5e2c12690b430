package model

import "github.com/shopspring/decimal"

// OHLCVConsistent reports whether the OHLCV price relationships required by
// §8 invariant 2 hold: low <= min(open, close) <= max(open, close) <= high,
// volume >= 0 (guaranteed by the unsigned type), and, if vwap is present,
// low <= vwap <= high.
func (r OHLCVRecord) OHLCVConsistent() bool {
	lo := decimal.Min(r.Open, r.Close)
	hi := decimal.Max(r.Open, r.Close)
	if r.Low.GreaterThan(lo) || hi.GreaterThan(r.High) {
		return false
	}
	if r.VWAP != nil && (r.Low.GreaterThan(*r.VWAP) || r.VWAP.GreaterThan(r.High)) {
		return false
	}
	return true
}

// TBBOConsistent reports whether the TBBO bid/ask relationship required by
// §8 invariant 3 holds: bid_px <= ask_px, unless the row is flagged crossed.
// Rows missing either side are trivially consistent.
func (r TBBORecord) TBBOConsistent() bool {
	if r.BidPx == nil || r.AskPx == nil {
		return true
	}
	return r.IsCrossed || r.BidPx.LessThanOrEqual(*r.AskPx)
}

// ComputeCrossed derives the is_crossed flag the TBBO loader persists:
// bid_px > ask_px when both sides are present.
func (r *TBBORecord) ComputeCrossed() {
	if r.BidPx != nil && r.AskPx != nil {
		r.IsCrossed = r.BidPx.GreaterThan(*r.AskPx)
	}
}
