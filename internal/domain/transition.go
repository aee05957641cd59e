package domain

import (
	"fmt"
	"strings"
)

// TransitionPolicy decides whether a task may move between two statuses.
type TransitionPolicy interface {
	// Name returns the configuration name of the policy.
	Name() string

	// RequiresCurrent reports whether Allow needs the task's current status.
	// Permissive policies skip the extra read.
	RequiresCurrent() bool

	// Allow returns an error wrapping ErrInvalidTransition if moving from
	// one status to the other is not permitted.
	Allow(from, to TaskStatus) error
}

// Policy names accepted by ParseTransitionPolicy
const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// PermissivePolicy accepts any status from any prior status.
type PermissivePolicy struct{}

// Name implements TransitionPolicy.
func (PermissivePolicy) Name() string { return PolicyPermissive }

// RequiresCurrent implements TransitionPolicy.
func (PermissivePolicy) RequiresCurrent() bool { return false }

// Allow implements TransitionPolicy.
func (PermissivePolicy) Allow(_, _ TaskStatus) error { return nil }

// StrictPolicy only allows forward moves along
// pending -> in_progress -> completed. Re-applying the current status is
// accepted so retried requests stay idempotent.
type StrictPolicy struct{}

// Name implements TransitionPolicy.
func (StrictPolicy) Name() string { return PolicyStrict }

// RequiresCurrent implements TransitionPolicy.
func (StrictPolicy) RequiresCurrent() bool { return true }

// Allow implements TransitionPolicy.
func (StrictPolicy) Allow(from, to TaskStatus) error {
	if from == to {
		return nil
	}

	switch {
	case from == TaskStatusPending && to == TaskStatusInProgress,
		from == TaskStatusInProgress && to == TaskStatusCompleted:
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
}

// ParseTransitionPolicy returns the policy registered under name.
// An empty name selects the permissive policy.
func ParseTransitionPolicy(name string) (TransitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyPermissive:
		return PermissivePolicy{}, nil
	case PolicyStrict:
		return StrictPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown transition policy %q", name)
	}
}
