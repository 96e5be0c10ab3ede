package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuard_SentinelArmsWindow(t *testing.T) {
	g := New(Config{Topics: []string{"/devices/wbrules/meta/online"}, Duration: 50 * time.Millisecond})

	assert.True(t, g.MaintenanceStarted("/devices/wbrules/meta/online"))
	assert.True(t, g.MaintenanceStarted("/devices/tv1/meta/available")) // still armed

	time.Sleep(80 * time.Millisecond)
	assert.False(t, g.MaintenanceStarted("/devices/tv1/meta/available")) // window elapsed
}

func TestGuard_NeverArmedIsFalse(t *testing.T) {
	g := New(Config{Topics: []string{"/devices/wbrules/meta/online"}, Duration: time.Second})
	assert.False(t, g.MaintenanceStarted("/devices/tv1/meta/available"))
}

func TestGuard_Wildcard(t *testing.T) {
	g := New(Config{Topics: []string{"/devices/+/meta/online"}, Duration: time.Second})
	assert.True(t, g.MaintenanceStarted("/devices/wbrules/meta/online"))
}

func TestGuard_SubscriptionTopics(t *testing.T) {
	topics := []string{"/devices/wbrules/meta/online"}
	g := New(Config{Topics: topics, Duration: time.Second})
	got := g.SubscriptionTopics()
	assert.Equal(t, topics, got)

	// returned slice must not alias cfg.Topics
	got[0] = "mutated"
	assert.Equal(t, topics[0], g.cfg.Topics[0])
}
