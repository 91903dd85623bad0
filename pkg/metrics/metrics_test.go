package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledMetricsAreNilSafe(t *testing.T) {
	resetForTesting()

	m := NewArchiveMetrics()
	require.Nil(t, m)

	// none of these may panic on a nil receiver
	m.RecordIngest()
	m.RecordRetrieval("local1")
	m.RecordCheck("local1", ResultGood, time.Millisecond)
	m.RecordRepair("local1", OutcomeRepaired)
	m.RecordSweep(time.Second)
	m.SetResourceCount(3)
}

func TestEnabledMetricsRecord(t *testing.T) {
	resetForTesting()
	InitRegistry()
	t.Cleanup(resetForTesting)

	m := NewArchiveMetrics()
	require.NotNil(t, m)

	m.RecordIngest()
	m.RecordIngest()
	m.RecordCheck("s3main", ResultMismatch, 10*time.Millisecond)
	m.RecordRepair("s3main", OutcomeRepaired)
	m.SetResourceCount(42)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ingests))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.checks.WithLabelValues("s3main", ResultMismatch)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.repairs.WithLabelValues("s3main", OutcomeRepaired)))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.resources))
}

func TestInitRegistryIdempotent(t *testing.T) {
	resetForTesting()
	InitRegistry()
	t.Cleanup(resetForTesting)

	first := GetRegistry()
	InitRegistry()
	assert.Same(t, first, GetRegistry())
	assert.True(t, IsEnabled())
	assert.NotNil(t, Handler())
}
