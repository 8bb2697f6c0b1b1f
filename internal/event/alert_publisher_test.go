package event

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/knulata/satteli/internal/models"
)

// ============================================================================
// TEST SUITE: PUBLISHER METRICS
// ============================================================================

func TestAlertPublisher_CountsFailuresFromConcurrentCallers(t *testing.T) {
	pub := NewAlertPublisher(&RabbitMQConnection{})

	const callers = 32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.PublishAlertCreated(context.Background(), &models.Alert{})
			assert.Error(t, err, "Publishing without an open channel must fail")
		}()
	}
	wg.Wait()

	metrics := pub.GetMetrics()
	assert.Equal(t, int64(callers), metrics["messages_failed"],
		"Every concurrent failure is counted exactly once")
	assert.Equal(t, int64(0), metrics["messages_published"])

	health := pub.HealthCheck()
	assert.False(t, health.IsHealthy)
	assert.Equal(t, int64(callers), health.MessagesFailed)
}

func TestAlertPublisher_NilConnectionFailsCleanly(t *testing.T) {
	pub := NewAlertPublisher(nil)

	err := pub.PublishAlertCreated(context.Background(), &models.Alert{})
	assert.Error(t, err)
	assert.False(t, pub.HealthCheck().IsHealthy)
	assert.Equal(t, int64(1), pub.HealthCheck().MessagesFailed)
}
