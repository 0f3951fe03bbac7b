package models

import (
	"errors"
	"testing"
	"time"

	"devpulse/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionInvoicePaidStampsDate(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	inv := &Invoice{Status: InvoiceSent}

	require.NoError(t, TransitionInvoice(inv, InvoicePaid, now))
	assert.Equal(t, InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidDate)
	assert.True(t, inv.PaidDate.Equal(now))
}

func TestTransitionInvoiceClearsPaidDate(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, next := range []InvoiceStatus{InvoiceSent, InvoiceOverdue, InvoiceCancelled} {
		inv := &Invoice{Status: InvoiceDraft, PaidDate: &earlier}
		if next == InvoiceOverdue {
			inv.Status = InvoiceSent
		}
		require.NoError(t, TransitionInvoice(inv, next, time.Now()), "to %s", next)
		assert.Nil(t, inv.PaidDate, "paidDate must be cleared for %s", next)
	}
}

func TestTransitionInvoiceRejectsIllegalMoves(t *testing.T) {
	cases := []struct {
		from, to InvoiceStatus
	}{
		{InvoicePaid, InvoiceDraft},
		{InvoicePaid, InvoiceCancelled},
		{InvoiceDraft, InvoiceOverdue},
		{InvoiceCancelled, InvoicePaid},
	}
	for _, tc := range cases {
		inv := &Invoice{Status: tc.from}
		err := TransitionInvoice(inv, tc.to, time.Now())
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
		assert.Equal(t, tc.from, inv.Status)
	}
}

func TestTransitionInvoiceUnknownStatus(t *testing.T) {
	inv := &Invoice{Status: InvoiceDraft}
	err := TransitionInvoice(inv, InvoiceStatus("ARCHIVED"), time.Now())
	require.Error(t, err)
	assert.Equal(t, 400, apperror.Status(err))
}

func TestTransitionInvoiceSameStatusIsNoop(t *testing.T) {
	paidAt := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{Status: InvoicePaid, PaidDate: &paidAt}

	require.NoError(t, TransitionInvoice(inv, InvoicePaid, time.Now()))
	assert.True(t, inv.PaidDate.Equal(paidAt))
}

func TestApplyTaskStatus(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	task := &Task{Status: TaskInProgress}

	ApplyTaskStatus(task, TaskCompleted, now)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(now))

	// Re-completing keeps the first completion time.
	ApplyTaskStatus(task, TaskCompleted, now.Add(time.Hour))
	assert.True(t, task.CompletedAt.Equal(now))

	for _, s := range []TaskStatus{TaskTodo, TaskInProgress, TaskInReview, TaskCancelled} {
		ApplyTaskStatus(task, s, now)
		assert.Nil(t, task.CompletedAt, "completedAt must be cleared for %s", s)
		ApplyTaskStatus(task, TaskCompleted, now)
	}
}
