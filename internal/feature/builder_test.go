package feature

import (
	"errors"
	"math"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/indicator"
)

func makeSeries(closes ...float64) domain.Series {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, AdjClose: c}
	}
	return domain.Series{ID: "test", Bars: bars}
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 50 + 5*math.Sin(float64(i)/3) + float64(i)*0.1
	}
	return out
}

func TestBuilderWarmupAndNames(t *testing.T) {
	b, err := NewBuilder(nil, nil, indicator.SMA(5), indicator.RSI(14), indicator.MACD(12, 26, 9))
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}
	if b.Warmup() != 33 {
		t.Errorf("Warmup() = %d, want 33", b.Warmup())
	}
	if len(b.Names()) != 5 {
		t.Errorf("expected 5 outputs, got %v", b.Names())
	}

	if _, err := NewBuilder(nil, nil, indicator.SMA(5), indicator.SMA(5)); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for duplicate outputs, got %v", err)
	}
}

func TestFrameCausality(t *testing.T) {
	series := makeSeries(wave(80)...)
	b, err := NewBuilder(indicator.NewCalculator(), nil, indicator.SMA(5), indicator.EMA(10), indicator.RSI(14))
	if err != nil {
		t.Fatal(err)
	}

	full, err := b.Prepare(series)
	if err != nil {
		t.Fatal(err)
	}

	for _, i := range []int{0, 4, 14, 30, 79} {
		truncated, err := b.Prepare(series.Truncate(i))
		if err != nil {
			t.Fatal(err)
		}
		want := truncated.At(i)
		got := full.At(i)
		for _, name := range b.Names() {
			gv, gok := got.Value(name)
			wv, wok := want.Value(name)
			if gok != wok {
				t.Fatalf("bar %d %s availability differs: full=%v truncated=%v", i, name, gok, wok)
			}
			if gok && math.Abs(gv-wv) > 1e-9 {
				t.Errorf("bar %d %s: full=%f truncated=%f", i, name, gv, wv)
			}
			gp, gpok := got.Prev(name)
			wp, wpok := want.Prev(name)
			if gpok != wpok || (gpok && math.Abs(gp-wp) > 1e-9) {
				t.Errorf("bar %d %s prev differs: full=%f truncated=%f", i, name, gp, wp)
			}
		}
	}
}

func TestVectorDegraded(t *testing.T) {
	series := makeSeries(wave(20)...)
	b, err := NewBuilder(nil, nil, indicator.SMA(5))
	if err != nil {
		t.Fatal(err)
	}
	frame, err := b.Prepare(series)
	if err != nil {
		t.Fatal(err)
	}
	if !frame.At(3).Degraded() {
		t.Errorf("bar inside warm-up should be degraded")
	}
	if frame.At(4).Degraded() {
		t.Errorf("bar 4 should have sma_5 available")
	}
	if _, ok := frame.At(4).Prev("sma_5"); ok {
		t.Errorf("prev value at first available bar should be unavailable")
	}

	v := NewVector(0, series.Bars[0], map[string]float64{"x": math.NaN()})
	if !v.Degraded() {
		t.Errorf("vector with NaN value should be degraded")
	}
	if _, ok := v.Value("missing"); ok {
		t.Errorf("missing name should not be available")
	}
}
