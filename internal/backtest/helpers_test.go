package backtest

import (
	"math"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/ensemble"
	"strategy-lab/internal/feature"
	"strategy-lab/internal/indicator"
	"strategy-lab/internal/signal"
)

func makeSeries(closes ...float64) domain.Series {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, AdjClose: c}
	}
	return domain.Series{ID: "test", Bars: bars}
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 12*math.Sin(float64(i)/4) + float64(i)*0.2
	}
	return out
}

func plainBuilder(t *testing.T) *feature.Builder {
	t.Helper()
	b, err := feature.NewBuilder(indicator.NewCalculator(), nil)
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}
	return b
}

func scripted(t *testing.T, actions ...domain.Action) *ensemble.Ensemble {
	t.Helper()
	e := ensemble.New(ensemble.Majority)
	if err := e.Add("script", signal.NewScript(actions...)); err != nil {
		t.Fatal(err)
	}
	return e
}

func runEngine(t *testing.T, cfg Config, decider Decider, builder *feature.Builder, series domain.Series) Report {
	t.Helper()
	engine, err := NewEngine(cfg, decider, builder, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	report, err := engine.Run(t.Context(), series)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return report
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

type stubProvider map[string][]float64

func (p stubProvider) Compute(_ domain.Series, spec indicator.Spec) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for _, name := range spec.Outputs() {
		out[name] = p[name]
	}
	return out, nil
}
