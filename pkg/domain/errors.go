package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrWorkflowNotFound is returned when no workflow document exists for an intent.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrOverrideNotFound is returned when an override ID is unknown to the store.
var ErrOverrideNotFound = errors.New("override not found")

// ErrSessionLocked is returned when automation is attempted on an escalated session.
var ErrSessionLocked = errors.New("session escalated: automation locked")
