package timingattack

import "errors"

var (
	// ErrInvalidConfig marks rejected inputs and parameters. Not retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEnvironment marks failures of the surroundings, such as a random
	// source that cannot produce a usable value within its retry budget.
	ErrEnvironment = errors.New("environment error")

	// ErrSearchFinished is returned when stepping a search that already
	// reached a terminal state.
	ErrSearchFinished = errors.New("search already finished")
)
