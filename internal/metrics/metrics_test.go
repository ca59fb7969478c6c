package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ReconcileRuns.WithLabelValues("skipped"))
	ReconcileRuns.WithLabelValues("skipped").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReconcileRuns.WithLabelValues("skipped")))

	before = testutil.ToFloat64(EmailsSent.WithLabelValues("expired", "ok"))
	EmailsSent.WithLabelValues("expired", "ok").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(EmailsSent.WithLabelValues("expired", "ok")))
}
