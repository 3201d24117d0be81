package services

import "errors"

// Sentinel errors surfaced by the progression engine. Callers translate
// them to user-facing responses; match with errors.Is.
var (
	// ErrUserNotFound is returned for an unknown user id.
	ErrUserNotFound = errors.New("user not found")

	// ErrTaskNotFound is returned for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskInactive is returned when a task exists but is outside its
	// active window.
	ErrTaskInactive = errors.New("task not in active window")

	// ErrBadgeNotFound is returned for an unknown badge id.
	ErrBadgeNotFound = errors.New("badge not found")

	// ErrInvalidAdjustment is returned when an experience delta would
	// drive the aggregate negative, or is zero. No clamping is applied.
	ErrInvalidAdjustment = errors.New("invalid experience adjustment")

	// ErrAlreadyCheckedIn is returned for a repeated same-day check-in.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrAlreadyCompleted is returned when the current cycle's task
	// progress is already completed.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrConcurrency is returned after the bounded retry budget for a
	// lost update is exhausted. The caller may retry the whole action.
	ErrConcurrency = errors.New("concurrent update conflict")
)
