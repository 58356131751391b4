package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCeremonyStartIncrementsCounter(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(CeremoniesStartedTotal.WithLabelValues(OpCreate))
	RecordCeremonyStart(OpCreate)
	after := testutil.ToFloat64(CeremoniesStartedTotal.WithLabelValues(OpCreate))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}

func TestDisableSuppressesRecording(t *testing.T) {
	Disable()
	defer Enable()

	before := testutil.ToFloat64(SharesCreatedTotal)
	RecordSharesCreated(5)
	after := testutil.ToFloat64(SharesCreatedTotal)
	if after != before {
		t.Fatalf("counter changed while disabled: before=%v after=%v", before, after)
	}
}

func TestIsEnabledReflectsState(t *testing.T) {
	Enable()
	if !IsEnabled() {
		t.Fatal("IsEnabled() = false after Enable()")
	}
	Disable()
	if IsEnabled() {
		t.Fatal("IsEnabled() = true after Disable()")
	}
	Enable()
}

func TestRecordRecoveryAttemptIncrementsByResult(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(RecoveryAttemptsTotal.WithLabelValues(ResultFailure))
	RecordRecoveryAttempt(ResultFailure)
	after := testutil.ToFloat64(RecoveryAttemptsTotal.WithLabelValues(ResultFailure))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}
