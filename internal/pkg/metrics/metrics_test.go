package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounterVec_Reregisters(t *testing.T) {
	opts := prometheus.CounterOpts{Namespace: "test", Name: "reregister_total", Help: "h"}
	c1, err := NewCounterVec(opts, "l")
	require.Nil(t, err)
	c1.WithLabelValues("a").Inc()

	c2, err := NewCounterVec(opts, "l")
	require.Nil(t, err)
	c2.WithLabelValues("a").Inc()
	c2.WithLabelValues("a").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(c2.WithLabelValues("a")))
	prometheus.Unregister(c2)
}

func TestNewHistogramVec(t *testing.T) {
	h, err := NewHistogramVec(prometheus.HistogramOpts{Namespace: "test", Name: "hist_seconds", Help: "h"}, "l")
	require.Nil(t, err)
	h.WithLabelValues("a").Observe(1)
	assert.Equal(t, 1, testutil.CollectAndCount(h))
	prometheus.Unregister(h)
}

func TestNewCounterVec_FailsOnLabelConflict(t *testing.T) {
	opts := prometheus.CounterOpts{Namespace: "test", Name: "conflict_total", Help: "h"}
	_, err := NewCounterVec(opts, "l")
	require.Nil(t, err)
	_, err = NewCounterVec(opts, "other")
	assert.NotNil(t, err)
}
