package basket

import (
	"math"
	"testing"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

func quote(bid, ask float64) domain.OutcomeQuote {
	return domain.OutcomeQuote{
		Bid: domain.DepthPrice{Price: bid, Valid: true},
		Ask: domain.DepthPrice{Price: ask, Valid: true},
	}
}

func fullBasket(bids, asks []float64) []domain.OutcomeQuote {
	out := make([]domain.OutcomeQuote, len(bids))
	for i := range bids {
		out[i] = quote(bids[i], asks[i])
	}
	return out
}

func TestEvaluateBuySignalDrivenBySumAsks(t *testing.T) {
	// Asks sum to 0.90: the whole basket can be acquired for 0.90, locking
	// in 0.10 per basket.
	quotes := fullBasket(
		[]float64{0.20, 0.22, 0.21, 0.25},
		[]float64{0.22, 0.23, 0.22, 0.23},
	)
	sig := Evaluate(quotes, DefaultThresholds())

	if sig.Classification != domain.ClassificationBuy {
		t.Fatalf("classification = %s, want buy", sig.Classification)
	}
	if math.Abs(sig.SumAsks-0.90) > 1e-12 {
		t.Errorf("SumAsks = %v, want 0.90", sig.SumAsks)
	}
	if math.Abs(sig.Profit-0.10) > 1e-12 {
		t.Errorf("Profit = %v, want 0.10 (1 - SumAsks)", sig.Profit)
	}
	if sig.Partial {
		t.Errorf("fully priced basket reported Partial")
	}
}

func TestEvaluateSellSignalDrivenBySumBids(t *testing.T) {
	quotes := fullBasket(
		[]float64{0.30, 0.28, 0.27, 0.25}, // sum 1.10
		[]float64{0.32, 0.30, 0.29, 0.27},
	)
	sig := Evaluate(quotes, DefaultThresholds())

	if sig.Classification != domain.ClassificationSell {
		t.Fatalf("classification = %s, want sell", sig.Classification)
	}
	if math.Abs(sig.Profit-0.10) > 1e-9 {
		t.Errorf("Profit = %v, want 0.10 (SumBids - 1)", sig.Profit)
	}
}

func TestEvaluateBalancedInsideBand(t *testing.T) {
	quotes := fullBasket(
		[]float64{0.25, 0.25, 0.24, 0.25},
		[]float64{0.26, 0.26, 0.25, 0.26},
	)
	sig := Evaluate(quotes, DefaultThresholds())
	if sig.Classification != domain.ClassificationBalanced {
		t.Fatalf("classification = %s, want balanced", sig.Classification)
	}
	if sig.Profit != 0 {
		t.Errorf("Profit = %v, want 0 for balanced", sig.Profit)
	}
}

func TestEvaluateThresholdBoundaries(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name string
		bids []float64
		asks []float64
		want domain.Classification
	}{
		{
			// Bids sum exactly to 1.03: equality with High is balanced.
			name: "bids at high boundary",
			bids: []float64{0.30, 0.25, 0.20, 0.28},
			asks: []float64{0.31, 0.26, 0.21, 0.29},
			want: domain.ClassificationBalanced,
		},
		{
			name: "bids just above high",
			bids: []float64{0.30, 0.25, 0.21, 0.28}, // 1.04
			asks: []float64{0.31, 0.26, 0.22, 0.29},
			want: domain.ClassificationSell,
		},
		{
			// Asks sum exactly to 0.97: equality with Low is balanced.
			name: "asks at low boundary",
			bids: []float64{0.23, 0.23, 0.23, 0.23},
			asks: []float64{0.25, 0.24, 0.24, 0.24},
			want: domain.ClassificationBalanced,
		},
		{
			name: "asks just below low",
			bids: []float64{0.23, 0.23, 0.23, 0.23},
			asks: []float64{0.24, 0.24, 0.24, 0.24}, // 0.96
			want: domain.ClassificationBuy,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := Evaluate(fullBasket(tc.bids, tc.asks), th)
			if sig.Classification != tc.want {
				t.Errorf("classification = %s, want %s (sum_bids=%v sum_asks=%v)",
					sig.Classification, tc.want, sig.SumBids, sig.SumAsks)
			}
		})
	}
}

func TestEvaluatePartialBasketNeverSignals(t *testing.T) {
	// Two of four outcomes priced; their asks alone sum to 0.45 which would
	// look like a screaming buy if missing data were treated as zero.
	quotes := []domain.OutcomeQuote{
		quote(0.20, 0.22),
		quote(0.21, 0.23),
		{Bid: domain.DepthPrice{}, Ask: domain.DepthPrice{}},
		{Bid: domain.DepthPrice{}, Ask: domain.DepthPrice{}},
	}
	sig := Evaluate(quotes, DefaultThresholds())

	if sig.Classification != domain.ClassificationBalanced {
		t.Fatalf("classification = %s, want balanced for partial basket", sig.Classification)
	}
	if !sig.Partial {
		t.Errorf("Partial = false, want true")
	}
	if sig.PricedAsks != 2 || sig.PricedBids != 2 || sig.Total != 4 {
		t.Errorf("counts = %d/%d of %d, want 2/2 of 4", sig.PricedBids, sig.PricedAsks, sig.Total)
	}
	// Partial sums are still reported for display.
	if math.Abs(sig.SumAsks-0.45) > 1e-12 {
		t.Errorf("SumAsks = %v, want 0.45", sig.SumAsks)
	}
}

func TestEvaluateOneSideMissingBlocksOnlyThatSignal(t *testing.T) {
	// All asks present and cheap, one bid missing: buy may fire, sell may not.
	quotes := []domain.OutcomeQuote{
		quote(0.20, 0.22),
		quote(0.21, 0.23),
		quote(0.22, 0.22),
		{Bid: domain.DepthPrice{}, Ask: domain.DepthPrice{Price: 0.23, Valid: true}},
	}
	sig := Evaluate(quotes, DefaultThresholds())
	if sig.Classification != domain.ClassificationBuy {
		t.Fatalf("classification = %s, want buy (asks fully priced at 0.90)", sig.Classification)
	}
	if !sig.Partial {
		t.Errorf("Partial = false, want true with a bid missing")
	}
}

func TestEvaluateEmptyBasket(t *testing.T) {
	sig := Evaluate(nil, DefaultThresholds())
	if sig.Classification != domain.ClassificationBalanced {
		t.Fatalf("classification = %s, want balanced", sig.Classification)
	}
	if !sig.Partial {
		t.Errorf("empty basket must report Partial")
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	quotes := fullBasket(
		[]float64{0.24, 0.26, 0.22, 0.20},
		[]float64{0.25, 0.27, 0.23, 0.21},
	)
	a := Evaluate(quotes, DefaultThresholds())
	b := Evaluate(quotes, DefaultThresholds())
	if a != b {
		t.Errorf("identical input gave %+v then %+v", a, b)
	}
}
