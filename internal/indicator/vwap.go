package indicator

// vwapWindow keeps a fixed-size rolling window of (typical price,
// volume) pairs and recomputes VWAP in O(1) amortized by maintaining
// running sums and evicting the oldest sample.
type vwapWindow struct {
	cap int

	prices  []float64
	volumes []float64
	head    int
	filled  int

	sumPV float64
	sumV  float64
}

func newVWAPWindow(capacity int) *vwapWindow {
	return &vwapWindow{
		cap:     capacity,
		prices:  make([]float64, capacity),
		volumes: make([]float64, capacity),
	}
}

func (w *vwapWindow) update(typicalPrice, volume float64) float64 {
	if w.filled == w.cap {
		evictPV := w.prices[w.head] * w.volumes[w.head]
		w.sumPV -= evictPV
		w.sumV -= w.volumes[w.head]
	} else {
		w.filled++
	}

	w.prices[w.head] = typicalPrice
	w.volumes[w.head] = volume
	w.sumPV += typicalPrice * volume
	w.sumV += volume

	w.head = (w.head + 1) % w.cap

	if w.sumV <= 0 {
		return typicalPrice
	}
	return w.sumPV / w.sumV
}
