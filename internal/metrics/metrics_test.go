package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()

	RedemptionsTotal.WithLabelValues("POS", OutcomeSuccess, "HANDED_OFF").Inc()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "namqr_redemptions_total" {
			found = true
		}
	}
	if !found {
		t.Error("namqr_redemptions_total should be registered")
	}
}

func TestCounters_Labels(t *testing.T) {
	before := testutil.ToFloat64(RedemptionsTotal.WithLabelValues("ATM", "AlreadyRedeemed", "DECODED"))
	RedemptionsTotal.WithLabelValues("ATM", "AlreadyRedeemed", "DECODED").Inc()
	after := testutil.ToFloat64(RedemptionsTotal.WithLabelValues("ATM", "AlreadyRedeemed", "DECODED"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}
