package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupStoreFirstDelivery(t *testing.T) {
	s := NewDedupStore(nil, time.Hour)
	ctx := context.Background()

	assert.True(t, s.FirstDelivery(ctx, "evt_1"))
	assert.False(t, s.FirstDelivery(ctx, "evt_1"), "redelivery must be suppressed")
	assert.True(t, s.FirstDelivery(ctx, "evt_2"), "distinct events are independent")
}

func TestDedupStoreExpiry(t *testing.T) {
	s := NewDedupStore(nil, 10*time.Millisecond)
	ctx := context.Background()

	assert.True(t, s.FirstDelivery(ctx, "evt_1"))
	time.Sleep(20 * time.Millisecond)
	// Retention is time-bounded: after the TTL the id may be seen again.
	assert.True(t, s.FirstDelivery(ctx, "evt_1"))
}

func TestDedupStoreForget(t *testing.T) {
	s := NewDedupStore(nil, time.Hour)
	ctx := context.Background()

	assert.True(t, s.FirstDelivery(ctx, "evt_1"))
	s.Forget(ctx, "evt_1")
	// After a failed handling the claim is released so the sender's
	// retry gets processed.
	assert.True(t, s.FirstDelivery(ctx, "evt_1"))
}

func TestDedupStoreConcurrent(t *testing.T) {
	s := NewDedupStore(nil, time.Hour)
	ctx := context.Background()

	firsts := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func() { firsts <- s.FirstDelivery(ctx, "evt_race") }()
	}
	count := 0
	for i := 0; i < 16; i++ {
		if <-firsts {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one delivery wins")
}
