package models

import (
	"fmt"
	"time"

	"devpulse/internal/apperror"
)

type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "PENDING"
	ProjectInProgress ProjectStatus = "IN_PROGRESS"
	ProjectCompleted  ProjectStatus = "COMPLETED"
	ProjectCancelled  ProjectStatus = "CANCELLED"
	ProjectOnHold     ProjectStatus = "ON_HOLD"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskInReview   TaskStatus = "IN_REVIEW"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceSent      InvoiceStatus = "SENT"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// invoiceTransitions lists the statuses reachable from each status. PAID is terminal.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:     {InvoiceSent, InvoicePaid, InvoiceCancelled},
	InvoiceSent:      {InvoicePaid, InvoiceOverdue, InvoiceCancelled, InvoiceDraft},
	InvoiceOverdue:   {InvoicePaid, InvoiceSent, InvoiceCancelled},
	InvoiceCancelled: {InvoiceDraft},
	InvoicePaid:      {},
}

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionInvoice moves inv to next and keeps PaidDate in step with it:
// entering PAID stamps now, every other status clears it. Moving to the
// current status changes nothing.
func TransitionInvoice(inv *Invoice, next InvoiceStatus, now time.Time) error {
	if !next.Valid() {
		return apperror.Validation("Invalid invoice status",
			apperror.FieldError{Field: "status", Rule: "oneof", Param: "DRAFT SENT PAID OVERDUE CANCELLED"})
	}
	if inv.Status == next {
		return nil
	}
	if !inv.Status.CanTransitionTo(next) {
		return apperror.Validation(fmt.Sprintf("Cannot change invoice status from %s to %s", inv.Status, next))
	}
	inv.Status = next
	if next == InvoicePaid {
		paid := now
		inv.PaidDate = &paid
	} else {
		inv.PaidDate = nil
	}
	inv.UpdatedAt = now
	return nil
}

// ApplyTaskStatus sets the task status and its CompletedAt stamp.
// A task that is already completed keeps its original completion time.
func ApplyTaskStatus(t *Task, next TaskStatus, now time.Time) {
	if next == TaskCompleted {
		if t.Status != TaskCompleted || t.CompletedAt == nil {
			done := now
			t.CompletedAt = &done
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = next
}
