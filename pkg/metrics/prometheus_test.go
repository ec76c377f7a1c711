package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"FinSignal/internal/domain/models"
)

func TestRecorderRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordTick("BINANCE:BTCUSDT", 64000)
	r.RecordSignal(models.ActionBuy, "rsi_bb", true)
	r.RecordOutcome("rsi_bb", models.ResultWin, 12)
	r.RecordWeight("rsi_bb", 1.05)
	r.RecordEpsilon(0.2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"finsignal_ticks_total":             false,
		"finsignal_signals_published_total": false,
		"finsignal_outcomes_total":          false,
		"finsignal_reward":                  false,
		"finsignal_bandit_weight":           false,
		"finsignal_agent_epsilon":           false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	// two recorders on private registries must not collide
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
