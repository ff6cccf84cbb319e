package model

import "time"

// ToastKind distinguishes confirmation toasts from failures.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a transient notification. Only one is visible at a time.
type Toast struct {
	Message   string
	Kind      ToastKind
	ExpiresAt time.Time
}

// Expired reports whether the toast should no longer be shown at now.
func (t Toast) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
