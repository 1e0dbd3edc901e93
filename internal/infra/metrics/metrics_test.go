package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
	"grovepi-bridge/internal/infra/metrics"
)

var _ application.Observer = (*metrics.Metrics)(nil)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.MessageClassified(domain.KindTemperatureRead)
	m.MessageClassified(domain.KindTemperatureRead)
	m.MessageClassified(domain.KindUnrecognized)
	m.Dispatched(domain.KindTemperatureRead, nil)
	m.Dispatched(domain.KindTemperatureRead, errors.New("i2c"))
	m.Broadcast("values", nil)
	m.ReconnectAttempt()
	m.ReconnectAttempt()

	count, err := testutil.GatherAndCount(reg, "bridge_messages_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "bridge_dispatch_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "bridge_broadcasts_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_SessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.SessionConnected(true)
	families, err := reg.Gather()
	assert.NoError(t, err)

	var value float64
	for _, f := range families {
		if f.GetName() == "bridge_session_connected" {
			value = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, value)

	m.SessionConnected(false)
	families, err = reg.Gather()
	assert.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "bridge_session_connected" {
			value = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 0.0, value)
}

func TestMetrics_ReconnectCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ReconnectAttempt()
	m.ReconnectAttempt()
	m.ReconnectAttempt()

	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "bridge_reconnect_attempts_total" {
			assert.Equal(t, 3.0, f.GetMetric()[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatal("reconnect counter not gathered")
}
