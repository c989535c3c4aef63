package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/resolvd/resolvd/pkg/domain"
)

func TestComputePromiseDeadline(t *testing.T) {
	// Tuesday 2026-02-03.
	ref := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		contactDay   string
		wantType     string
		wantDeadline string
	}{
		{"Mon", PromiseFriday, "2026-02-06"},
		{"Tue", PromiseFriday, "2026-02-06"},
		{"Wed", PromiseFriday, "2026-02-06"},
		{"Thu", PromiseEarlyNextWeek, "2026-02-09"},
		{"Fri", PromiseEarlyNextWeek, "2026-02-09"},
		{"Sat", PromiseEarlyNextWeek, "2026-02-09"},
		{"Sun", PromiseEarlyNextWeek, "2026-02-09"},
		// Unknown day takes the conservative promise.
		{"??", PromiseEarlyNextWeek, "2026-02-09"},
	}

	for _, tt := range tests {
		t.Run(tt.contactDay, func(t *testing.T) {
			promiseType, deadline := ComputePromiseDeadline(tt.contactDay, ref)
			assert.Equal(t, tt.wantType, promiseType)
			assert.Equal(t, tt.wantDeadline, deadline)
		})
	}
}

func TestComputePromiseDeadline_OnFriday(t *testing.T) {
	// Friday itself: the Friday promise lands on the same day.
	ref := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)
	promiseType, deadline := ComputePromiseDeadline("Wed", ref)
	assert.Equal(t, PromiseFriday, promiseType)
	assert.Equal(t, "2026-02-06", deadline)

	// Monday reference: next Monday, never today.
	ref = time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	promiseType, deadline = ComputePromiseDeadline("Sun", ref)
	assert.Equal(t, PromiseEarlyNextWeek, promiseType)
	assert.Equal(t, "2026-02-09", deadline)
}

func TestPromiseDeadlinePassed(t *testing.T) {
	now := time.Date(2026, 2, 7, 0, 30, 0, 0, time.UTC)

	assert.False(t, PromiseDeadlinePassed("", now), "no deadline never counts as passed")
	assert.False(t, PromiseDeadlinePassed("not-a-date", now), "malformed deadline never counts as passed")
	assert.False(t, PromiseDeadlinePassed("2026-02-07", now), "deadline holds through its own day")
	assert.True(t, PromiseDeadlinePassed("2026-02-06", now))
	assert.False(t, PromiseDeadlinePassed("2026-02-10", now))
}

func TestContactDay(t *testing.T) {
	now := time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC) // Wednesday

	t.Run("prefers stored contact day", func(t *testing.T) {
		sess := domain.NewSession(domain.CustomerInfo{}, now)
		sess.CaseContext.ContactDay = "Mon"
		assert.Equal(t, "Mon", ContactDay(sess, now))
	})

	t.Run("falls back to first customer message", func(t *testing.T) {
		sess := domain.NewSession(domain.CustomerInfo{}, now)
		sess.Messages = append(sess.Messages,
			domain.NewMessage(domain.RoleAgent, "hello", now),
			domain.NewMessage(domain.RoleCustomer, "hi", time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)), // Monday
		)
		assert.Equal(t, "Mon", ContactDay(sess, now))
	})

	t.Run("falls back to session creation", func(t *testing.T) {
		sess := domain.NewSession(domain.CustomerInfo{}, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)) // Sunday
		assert.Equal(t, "Sun", ContactDay(sess, now))
	})
}
