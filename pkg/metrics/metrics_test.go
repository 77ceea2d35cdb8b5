package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordEvolveTasks("0", 3)
	c.RecordEvolveTasks("1", 2)
	c.RecordTaskFailure("1")
	c.RecordMigrantsPulled("0", 4)
	c.RecordMigrantsPublished("0", 1)
	c.SetIslands(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.evolveTasksTotal.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.evolveTasksTotal.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskFailuresTotal.WithLabelValues("1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.migrantsPulled.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.migrantsPublished.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.islands))
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	c.RecordEvolveTasks("0", 1)
	c.RecordTaskFailure("0")
	c.RecordMigrantsPulled("0", 1)
	c.RecordMigrantsPublished("0", 1)
	c.SetIslands(1)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestZeroCountsSkipped(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNew(reg)
	c.RecordMigrantsPulled("0", 0)
	c.RecordMigrantsPublished("0", 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "archi_migrants_pulled_total" || f.GetName() == "archi_migrants_published_total" {
			assert.Empty(t, f.GetMetric(), "zero increments must not materialize label sets")
		}
	}
}
