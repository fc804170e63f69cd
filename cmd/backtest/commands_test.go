package main

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"strategy-lab/internal/app"
	"strategy-lab/internal/backtest"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "sweep", "runs"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent --config flag")
	}
}

func TestRootCmd_RunRequiresSymbol(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "symbol") {
		t.Fatalf("expected missing --symbol error, got %v", err)
	}
}

func TestPrintReports(t *testing.T) {
	var buf bytes.Buffer
	printReports(&buf, []app.RunSummary{{
		ID:    "abc",
		Label: "run/policy=majority",
		Report: backtest.Report{
			Result:      backtest.Result{TotalReturn: 0.2, TotalTrades: 1, WinRate: 1, ProfitFactor: math.Inf(1)},
			FinalEquity: 120,
		},
	}})
	out := buf.String()
	for _, want := range []string{"PROFIT_FACTOR", "abc", "20.00%", "inf", "120.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
