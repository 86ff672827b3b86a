package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscription(t *testing.T) {
	userID := uuid.New()
	start := time.Now()
	end := start.AddDate(0, 1, 0)

	t.Run("creates active subscription", func(t *testing.T) {
		sub, err := NewSubscription(userID, "pro", "sub_123", start, end)
		require.NoError(t, err)

		assert.Equal(t, SubscriptionStatusActive, sub.Status)
		assert.True(t, sub.IsActive())
		assert.Equal(t, 0, sub.RenewalCount)
		assert.Nil(t, sub.LastRenewalAt)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewSubscription(uuid.Nil, "pro", "sub_123", start, end)
		assert.Error(t, err)

		_, err = NewSubscription(userID, "", "sub_123", start, end)
		assert.Error(t, err)

		_, err = NewSubscription(userID, "pro", "", start, end)
		assert.Error(t, err)
	})
}

func TestSubscription_Lifecycle(t *testing.T) {
	newSub := func(t *testing.T) *Subscription {
		sub, err := NewSubscription(uuid.New(), "pro", "sub_abc", time.Now(), time.Now().AddDate(0, 1, 0))
		require.NoError(t, err)
		return sub
	}

	t.Run("cancel is idempotent", func(t *testing.T) {
		sub := newSub(t)
		sub.Cancel()
		assert.Equal(t, SubscriptionStatusCanceled, sub.Status)

		sub.Cancel()
		assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	})

	t.Run("past_due does not resurrect canceled", func(t *testing.T) {
		sub := newSub(t)
		sub.Cancel()
		sub.MarkPastDue()
		assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	})

	t.Run("reactivate from past_due", func(t *testing.T) {
		sub := newSub(t)
		sub.MarkPastDue()
		assert.Equal(t, SubscriptionStatusPastDue, sub.Status)

		sub.Reactivate()
		assert.True(t, sub.IsActive())
	})

	t.Run("record renewal bumps counter and timestamp", func(t *testing.T) {
		sub := newSub(t)
		sub.RecordRenewal()
		sub.RecordRenewal()

		assert.Equal(t, 2, sub.RenewalCount)
		require.NotNil(t, sub.LastRenewalAt)
		assert.WithinDuration(t, time.Now(), *sub.LastRenewalAt, time.Second)
	})

	t.Run("update period overwrites boundaries", func(t *testing.T) {
		sub := newSub(t)
		newStart := time.Now().AddDate(0, 1, 0)
		newEnd := newStart.AddDate(0, 1, 0)

		sub.UpdatePeriod(newStart, newEnd)
		assert.Equal(t, newStart, sub.CurrentPeriodStart)
		assert.Equal(t, newEnd, sub.CurrentPeriodEnd)
	})
}

func TestSubscriptionStatus_IsValid(t *testing.T) {
	assert.True(t, SubscriptionStatusActive.IsValid())
	assert.True(t, SubscriptionStatusCanceled.IsValid())
	assert.True(t, SubscriptionStatusPastDue.IsValid())
	assert.False(t, SubscriptionStatus("trialing").IsValid())
}
