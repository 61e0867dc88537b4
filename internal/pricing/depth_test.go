package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

func levels(pairs ...float64) []domain.PriceLevel {
	if len(pairs)%2 != 0 {
		panic("levels: need price/size pairs")
	}
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestResolveSingleLevelCoversTarget(t *testing.T) {
	got, err := Resolve(levels(0.42, 150), SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != 0.42 {
		t.Errorf("price = %v, want 0.42", got)
	}
}

func TestResolveWeightedAverageAcrossLevels(t *testing.T) {
	// (0.10*50 + 0.20*50) / 100 = 0.15
	got, err := Resolve(levels(0.10, 50, 0.20, 50), SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if math.Abs(got-0.15) > 1e-12 {
		t.Errorf("price = %v, want 0.15", got)
	}
}

func TestResolveSortsDefensively(t *testing.T) {
	asc := levels(0.10, 50, 0.20, 50)
	desc := levels(0.20, 50, 0.10, 50)

	a, err := Resolve(asc, SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve(asc): %v", err)
	}
	b, err := Resolve(desc, SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve(desc): %v", err)
	}
	if a != b {
		t.Errorf("order of input levels changed result: %v vs %v", a, b)
	}
}

func TestResolveConsumesCheapestAsksFirst(t *testing.T) {
	// Target fits in the cheapest level alone; the expensive one must not
	// contribute.
	got, err := Resolve(levels(0.90, 100, 0.10, 100), SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != 0.10 {
		t.Errorf("price = %v, want 0.10 (cheapest liquidity first)", got)
	}
}

func TestResolveConsumesBestBidsFirst(t *testing.T) {
	got, err := Resolve(levels(0.10, 100, 0.90, 100), SideBid, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != 0.90 {
		t.Errorf("price = %v, want 0.90 (highest bid first)", got)
	}
}

func TestResolveAskBounds(t *testing.T) {
	lvls := levels(0.10, 30, 0.25, 30, 0.60, 100)
	got, err := Resolve(lvls, SideAsk, 80)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Never below the cheapest ask, never above the most expensive level
	// consumed to reach the target.
	if got < 0.10 {
		t.Errorf("price %v below cheapest ask", got)
	}
	if got > 0.60 {
		t.Errorf("price %v above most expensive consumed ask", got)
	}
}

func TestResolveInsufficientDepth(t *testing.T) {
	_, err := Resolve(levels(0.10, 50), SideAsk, 100)
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("err = %v, want ErrInsufficientDepth", err)
	}
}

func TestResolveEmptyBook(t *testing.T) {
	_, err := Resolve(nil, SideBid, 10)
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("err = %v, want ErrInsufficientDepth", err)
	}
}

func TestResolveExactDepthBoundary(t *testing.T) {
	got, err := Resolve(levels(0.30, 60, 0.40, 40), SideAsk, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := (0.30*60 + 0.40*40) / 100
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("price = %v, want %v", got, want)
	}
}

func TestResolveZeroPriceIsAValidQuote(t *testing.T) {
	got, err := Resolve(levels(0, 200), SideBid, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != 0 {
		t.Errorf("price = %v, want 0 (zero is a legitimate price)", got)
	}
}

func TestResolveRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name   string
		lvls   []domain.PriceLevel
		side   Side
		target float64
	}{
		{"negative size", levels(0.5, -10), SideAsk, 10},
		{"zero size", levels(0.5, 0), SideAsk, 10},
		{"price above one", levels(1.2, 10), SideAsk, 10},
		{"negative price", levels(-0.1, 10), SideBid, 10},
		{"nan price", []domain.PriceLevel{{Price: math.NaN(), Size: 10}}, SideAsk, 10},
		{"inf size", []domain.PriceLevel{{Price: 0.5, Size: math.Inf(1)}}, SideAsk, 10},
		{"zero target", levels(0.5, 10), SideAsk, 0},
		{"negative target", levels(0.5, 10), SideAsk, -5},
		{"unknown side", levels(0.5, 10), Side("mid"), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Resolve(tc.lvls, tc.side, tc.target); !errors.Is(err, domain.ErrInvalidLevel) {
				t.Errorf("err = %v, want ErrInvalidLevel", err)
			}
		})
	}
}

func TestResolveInputNotMutated(t *testing.T) {
	in := levels(0.20, 50, 0.10, 50)
	if _, err := Resolve(in, SideAsk, 100); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if in[0].Price != 0.20 || in[1].Price != 0.10 {
		t.Errorf("input slice was reordered: %+v", in)
	}
}

func TestResolveIdempotent(t *testing.T) {
	in := levels(0.33, 40, 0.35, 80, 0.31, 20)
	a, errA := Resolve(in, SideAsk, 100)
	b, errB := Resolve(in, SideAsk, 100)
	if errA != nil || errB != nil {
		t.Fatalf("Resolve: %v / %v", errA, errB)
	}
	if a != b {
		t.Errorf("identical input gave %v then %v", a, b)
	}
}

func TestResolveQuote(t *testing.T) {
	q, err := ResolveQuote(levels(0.10, 50), SideAsk, 100)
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.Valid {
		t.Errorf("insufficient depth must yield an invalid quote, got %+v", q)
	}

	q, err = ResolveQuote(levels(0.10, 200), SideAsk, 100)
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if !q.Valid || q.Price != 0.10 {
		t.Errorf("quote = %+v, want valid 0.10", q)
	}

	if _, err = ResolveQuote(levels(2.0, 10), SideAsk, 100); !errors.Is(err, domain.ErrInvalidLevel) {
		t.Errorf("validation errors must pass through, got %v", err)
	}
}
